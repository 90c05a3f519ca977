package service

// Suggestions 每种聊天类型的示例问题
var suggestions = map[string][]string{
	"general": {
		"What can you help me with?",
		"How many clients do I have?",
		"Show me all my clients",
		"Give me tips for following up with a late-paying client",
	},
	"clients": {
		"Create a new client named Jane Doe with email jane@example.com",
		"List all clients",
		"Show client jane@example.com",
		"Update Jane Doe's phone to 555-0100",
	},
	"projects": {
		"Create a project called Website Redesign for Acme",
		"List all projects",
		"What should I include in a project kickoff?",
	},
	"tasks": {
		"Add a task titled Send invoice due Friday",
		"List all tasks",
		"How do I prioritise my week?",
	},
	"proposals": {
		"Create a proposal titled Q3 Retainer for Acme",
		"List all proposals",
		"What makes a good proposal?",
	},
}

// GetChatTypeSuggestions 聊天类型对应的示例问题，未知类型返回 general 的
func GetChatTypeSuggestions(chatType string) []string {
	list, ok := suggestions[chatType]
	if !ok {
		list = suggestions["general"]
	}
	return append([]string(nil), list...)
}
