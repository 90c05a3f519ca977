package service

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/bizdesk/bizdesk-go/internal/model"
)

// 规则匹配的置信度
const (
	ruleConfidenceAdjacent = 0.8  // 动词紧跟实体，例如 "create a new client"
	ruleConfidenceAction   = 0.6  // 有动词但不相邻
	ruleConfidenceMention  = 0.3  // 只提到实体
	ruleConfidencePerField = 0.05 // 每提取一个字段
	ruleConfidenceMax      = 0.95
)

var (
	emailRe        = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	labeledEmailRe = regexp.MustCompile(`(?i)\be-?mail(?:\s+(?:address|is|of|to|at))*\s*:?\s+([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})`)
	phoneRe        = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)
	namedRe        = regexp.MustCompile(`(?i)\b(?:named|called|titled)\s+`)
	quotedRe       = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)
	companyRe      = regexp.MustCompile(`(?i)\bcompany(?:\s+(?:is|named|called))?\s*:?\s+`)
	filterRe       = regexp.MustCompile(`(?i)\b(?:named|called|matching|containing|from|at)\s+`)
	forRe          = regexp.MustCompile(`(?i)\bfor\s+(?:client\s+)?`)
	dueRe          = regexp.MustCompile(`(?i)\bdue\s+(?:on\s+|by\s+)?([\w\-/]+)`)
	howManyRe      = regexp.MustCompile(`(?i)\bhow\s+many\b`)
)

// actionRule 动作关键词，按优先级排列
type actionRule struct {
	action model.Action
	verbs  string
}

var actionRules = []actionRule{
	{model.ActionCreate, `create|add|register|make|set\s+up|onboard`}, // "new" 是修饰词，不是动词
	{model.ActionUpdate, `update|change|edit|modify|rename|correct`},
	{model.ActionList, `list|all|every|enumerate`},
	{model.ActionRead, `show|find|get|view|display|look\s+up|lookup|details?|search|open|who\s+is`},
}

// entityRule 一个实体类型的规则组
type entityRule struct {
	intentType model.IntentType
	nouns      string // 单数/复数关键词
	keyword    *regexp.Regexp
	adjacent   *regexp.Regexp
	extract    func(text string, action model.Action, keywordEnd int) map[string]string
}

// RuleMatcher 基于规则的意图识别（纯函数，无 I/O）
type RuleMatcher struct {
	actions  []*regexp.Regexp
	entities []entityRule
}

// NewRuleMatcher 创建规则匹配器
func NewRuleMatcher() *RuleMatcher {
	m := &RuleMatcher{}
	var allVerbs []string
	for _, a := range actionRules {
		m.actions = append(m.actions, regexp.MustCompile(`(?i)\b(?:`+a.verbs+`)\b`))
		allVerbs = append(allVerbs, a.verbs)
	}
	verbs := strings.Join(allVerbs, "|")

	// 声明顺序即平局时的优先顺序
	defs := []struct {
		t       model.IntentType
		nouns   string
		extract func(string, model.Action, int) map[string]string
	}{
		{model.IntentClient, `clients?|customers?`, extractClient},
		{model.IntentProject, `projects?`, extractTitled("name")},
		{model.IntentTask, `tasks?|to-?dos?`, extractTitled("title")},
		{model.IntentProposal, `proposals?|quotes?|estimates?`, extractTitled("title")},
	}
	for _, d := range defs {
		m.entities = append(m.entities, entityRule{
			intentType: d.t,
			nouns:      d.nouns,
			keyword:    regexp.MustCompile(`(?i)\b(` + d.nouns + `)\b`),
			adjacent: regexp.MustCompile(`(?i)\b(?:` + verbs + `)\s+(?:(?:a|an|the|my|our|all|new|of|every|me)\s+){0,3}(?:` +
				d.nouns + `)\b`),
			extract: d.extract,
		})
	}
	return m
}

type ruleCandidate struct {
	rule     entityRule
	action   model.Action
	adjacent bool
	data     map[string]string
	score    int
}

// Match 识别意图，永不失败；无法识别时返回 general/none/0
func (m *RuleMatcher) Match(message string) model.Intent {
	text := strings.TrimSpace(message)
	if text == "" {
		return model.GeneralIntent()
	}

	action := m.detectAction(text)

	var best *ruleCandidate
	for _, rule := range m.entities {
		loc := rule.keyword.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}

		a := action
		plural := strings.HasSuffix(strings.ToLower(text[loc[2]:loc[3]]), "s")
		if a == model.ActionRead && plural {
			// "show clients" 视为列表
			a = model.ActionList
		}

		c := &ruleCandidate{
			rule:     rule,
			action:   a,
			adjacent: a != model.ActionNone && rule.adjacent.MatchString(text),
			data:     rule.extract(text, a, loc[1]),
		}
		c.score = len(c.data)
		if c.adjacent {
			c.score++
		}
		if best == nil || c.score > best.score {
			best = c
		}
	}

	if best == nil {
		intent := model.GeneralIntent()
		if email := extractEmail(text); email != "" {
			intent.Data["email"] = email
		}
		intent.Source = "rules"
		return intent
	}

	confidence := ruleConfidenceMention
	switch {
	case best.action == model.ActionNone:
	case best.adjacent:
		confidence = ruleConfidenceAdjacent
	default:
		confidence = ruleConfidenceAction
	}
	confidence += ruleConfidencePerField * float64(len(best.data))
	if confidence > ruleConfidenceMax {
		confidence = ruleConfidenceMax
	}

	return model.Intent{
		Type:       best.rule.intentType,
		Action:     best.action,
		Confidence: confidence,
		Data:       best.data,
		Source:     "rules",
	}.Normalize()
}

func (m *RuleMatcher) detectAction(text string) model.Action {
	if howManyRe.MatchString(text) {
		return model.ActionList
	}
	for i, re := range m.actions {
		if re.MatchString(text) {
			return actionRules[i].action
		}
	}
	return model.ActionNone
}

// extractEmail 优先取 "email xxx" 后面的地址
func extractEmail(text string) string {
	if m := labeledEmailRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return emailRe.FindString(text)
}

// extractPhone 去掉邮箱后匹配 7-15 位数字的号码
func extractPhone(text string) string {
	stripped := emailRe.ReplaceAllString(text, " ")
	for _, candidate := range phoneRe.FindAllString(stripped, -1) {
		digits := 0
		for _, r := range candidate {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if digits >= 7 && digits <= 15 {
			return strings.TrimSpace(candidate)
		}
	}
	return ""
}

var nameStopWords = map[string]bool{
	"with": true, "and": true, "email": true, "e-mail": true, "mail": true, "phone": true,
	"tel": true, "telephone": true, "mobile": true, "number": true, "company": true,
	"who": true, "whose": true, "at": true, "from": true, "for": true, "to": true,
	"please": true, "that": true, "in": true, "on": true, "set": true, "is": true,
	"due": true, "by": true, "about": true, "as": true,
}

var leadingFillers = map[string]bool{
	"details": true, "detail": true, "info": true, "information": true, "for": true,
	"of": true, "record": true, "profile": true, "named": true, "called": true,
	"a": true, "an": true, "the": true, "new": true,
}

// wordsAfter 从 start 开始取连续的名称词，遇到停用词、数字或邮箱停止
func wordsAfter(text string, start, max int, skipFillers bool) []string {
	if start >= len(text) {
		return nil
	}
	var words []string
	for _, raw := range strings.Fields(text[start:]) {
		word := strings.TrimRight(raw, ",.;:!?")
		punctuated := word != raw
		lower := strings.ToLower(word)
		if len(words) == 0 && skipFillers && leadingFillers[lower] {
			continue
		}
		if word == "" || nameStopWords[lower] || strings.ContainsAny(word, "@0123456789") {
			break
		}

		possessive := false
		for _, suffix := range []string{"'s", "’s"} {
			if strings.HasSuffix(lower, suffix) {
				word = word[:len(word)-len(suffix)]
				possessive = true
				break
			}
		}
		if word != "" {
			words = append(words, word)
		}
		if possessive || punctuated || len(words) == max {
			// 标点或所有格结束名称
			break
		}
	}
	return words
}

// target 实体关键词之后的查询目标（姓名或邮箱）
func target(text string, keywordEnd int) string {
	rest := strings.TrimSpace(text[keywordEnd:])
	fields := strings.Fields(rest)
	for len(fields) > 0 && leadingFillers[strings.ToLower(fields[0])] {
		fields = fields[1:]
	}
	if len(fields) > 0 {
		if first := strings.TrimRight(fields[0], ",.;:!?"); model.IsEmail(first) {
			return first
		}
	}
	return strings.Join(wordsAfter(text, keywordEnd, 4, true), " ")
}

func capitalized(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

func setName(data map[string]string, words []string) {
	if len(words) == 0 {
		return
	}
	data["first_name"] = words[0]
	if len(words) > 1 {
		data["last_name"] = strings.Join(words[1:], " ")
	}
}

// extractClient 客户字段
func extractClient(text string, action model.Action, keywordEnd int) map[string]string {
	data := map[string]string{}
	email := extractEmail(text)
	phone := extractPhone(text)

	var named []string
	if loc := namedRe.FindStringIndex(text); loc != nil {
		named = wordsAfter(text, loc[1], 3, false)
	}

	switch action {
	case model.ActionCreate:
		words := named
		if len(words) == 0 {
			if w := wordsAfter(text, keywordEnd, 3, true); len(w) > 0 && capitalized(w[0]) {
				words = w
			}
		}
		setName(data, words)
		if email != "" {
			data["email"] = email
		}
		if phone != "" {
			data["phone"] = phone
		}
		if loc := companyRe.FindStringIndex(text); loc != nil {
			if w := wordsAfter(text, loc[1], 4, false); len(w) > 0 {
				data["company"] = strings.Join(w, " ")
			}
		}

	case model.ActionRead, model.ActionUpdate:
		name := strings.Join(named, " ")
		if name == "" {
			name = target(text, keywordEnd)
		}
		if name == "" {
			name = email
		}
		if name != "" {
			data["name"] = name
		}
		if email != "" {
			data["email"] = email
		}
		if action == model.ActionUpdate {
			if phone != "" {
				data["phone"] = phone
			}
			if loc := companyRe.FindStringIndex(text); loc != nil {
				if w := wordsAfter(text, loc[1], 4, false); len(w) > 0 {
					data["company"] = strings.Join(w, " ")
				}
			}
		}

	case model.ActionList:
		if loc := filterRe.FindStringIndex(text[keywordEnd:]); loc != nil {
			if w := wordsAfter(text, keywordEnd+loc[1], 4, false); len(w) > 0 {
				data["filter"] = strings.Join(w, " ")
			}
		}
	}
	return data
}

// extractTitled 项目/任务/提案：名称来自引号、named/called/titled 或关键词之后
func extractTitled(titleKey string) func(string, model.Action, int) map[string]string {
	return func(text string, action model.Action, keywordEnd int) map[string]string {
		data := map[string]string{}

		if action == model.ActionList {
			if loc := filterRe.FindStringIndex(text[keywordEnd:]); loc != nil {
				if w := wordsAfter(text, keywordEnd+loc[1], 4, false); len(w) > 0 {
					data["filter"] = strings.Join(w, " ")
				}
			}
			return data
		}

		title := ""
		if m := quotedRe.FindStringSubmatch(text); m != nil {
			title = m[1] + m[2]
		} else if loc := namedRe.FindStringIndex(text); loc != nil {
			title = strings.Join(wordsAfter(text, loc[1], 6, false), " ")
		} else if w := wordsAfter(text, keywordEnd, 6, true); len(w) > 0 && (action != model.ActionCreate || capitalized(w[0])) {
			title = strings.Join(w, " ")
		}
		if title = strings.TrimSpace(title); title != "" {
			data[titleKey] = title
		}

		if titleKey == "title" {
			if m := dueRe.FindStringSubmatch(text); m != nil {
				data["due_date"] = m[1]
			}
		}
		if loc := forRe.FindStringIndex(text); loc != nil {
			if w := wordsAfter(text, loc[1], 3, false); len(w) > 0 && capitalized(w[0]) {
				data["client"] = strings.Join(w, " ")
			}
		}
		return data
	}
}
