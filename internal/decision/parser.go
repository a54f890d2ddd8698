package decision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"arena/internal/pkg/jsonutil"
	symbolpkg "arena/internal/pkg/symbol"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

var ErrNoJSON = errors.New("no JSON object found in response")

const decisionSchema = `{
  "type": "object",
  "required": ["action", "reasoning", "strategy"],
  "properties": {
    "action":     {"type": "string", "minLength": 1},
    "symbol":     {"type": ["string", "null"]},
    "size":       {"type": ["number", "string", "null"]},
    "leverage":   {"type": ["number", "string", "null"]},
    "stopLoss":   {"type": ["number", "string", "null"]},
    "takeProfit": {"type": ["number", "string", "null"]},
    "confidence": {"type": ["number", "string", "null"]},
    "reasoning":  {"type": "string"},
    "strategy":   {"type": "string"}
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("decision.json", strings.NewReader(decisionSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("decision.json")
}

// Parse 从模型原始输出中解析决策。支持代码块包裹、裸对象、
// 数组以及 {"decisions":[...]} 包装，取第一条。
func Parse(raw string) (TradingDecision, error) {
	text, ok := jsonutil.ExtractJSON(raw)
	if !ok {
		return TradingDecision{}, ErrNoJSON
	}
	if !gjson.Valid(text) {
		return TradingDecision{}, fmt.Errorf("invalid JSON: %s", truncate(text, 120))
	}
	node, err := firstDecisionNode(gjson.Parse(text))
	if err != nil {
		return TradingDecision{}, err
	}
	if err := validateSchema(node.Raw); err != nil {
		return TradingDecision{}, err
	}

	action, ok := ParseAction(node.Get("action").String())
	if !ok {
		return TradingDecision{}, fmt.Errorf("unknown action %q", node.Get("action").String())
	}
	d := TradingDecision{
		Action:    action,
		Reasoning: strings.TrimSpace(node.Get("reasoning").String()),
		Strategy:  strings.TrimSpace(node.Get("strategy").String()),
	}
	if sym := strings.TrimSpace(node.Get("symbol").String()); sym != "" {
		d.Symbol = symbolpkg.Normalize(sym)
	}
	fields := []struct {
		dst  **float64
		keys []string
	}{
		{&d.Size, []string{"size"}},
		{&d.Leverage, []string{"leverage"}},
		{&d.StopLoss, []string{"stopLoss", "stop_loss"}},
		{&d.TakeProfit, []string{"takeProfit", "take_profit"}},
	}
	for _, f := range fields {
		v, err := numberField(node, f.keys...)
		if err != nil {
			return TradingDecision{}, err
		}
		*f.dst = v
	}
	conf, err := numberField(node, "confidence")
	if err != nil {
		return TradingDecision{}, err
	}
	if conf != nil {
		d.Confidence = math.Max(0, math.Min(100, *conf))
	}
	return d, nil
}

// ParseOrHold 解析失败时返回安全 HOLD。
func ParseOrHold(raw string) TradingDecision {
	d, err := Parse(raw)
	if err != nil {
		return SafeHold("Failed to parse LLM response: " + err.Error())
	}
	return d
}

func firstDecisionNode(parsed gjson.Result) (gjson.Result, error) {
	if parsed.IsObject() {
		decisions := parsed.Get("decisions")
		if !decisions.Exists() || parsed.Get("action").Exists() {
			return parsed, nil
		}
		parsed = decisions
	}
	if !parsed.IsArray() {
		return gjson.Result{}, fmt.Errorf("根节点必须是 JSON 对象或数组")
	}
	items := parsed.Array()
	if len(items) == 0 {
		return gjson.Result{}, fmt.Errorf("决策数组为空")
	}
	if !items[0].IsObject() {
		return gjson.Result{}, fmt.Errorf("决策#1 不是对象")
	}
	return items[0], nil
}

func validateSchema(raw string) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode decision: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("decision schema: %w", err)
	}
	return nil
}

// finite 拒绝 NaN/Inf：这类值无法编码成 JSON，进了账本快照就写不出去。
func finite(key string, v float64) (*float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%s is not a finite number", key)
	}
	return &v, nil
}

// numberField 读取第一个存在的 key，数字字符串也接受。
func numberField(node gjson.Result, keys ...string) (*float64, error) {
	for _, key := range keys {
		r := node.Get(key)
		if !r.Exists() {
			continue
		}
		switch r.Type {
		case gjson.Null:
			return nil, nil
		case gjson.Number:
			return finite(key, r.Float())
		case gjson.String:
			s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(r.String()), "x"))
			if s == "" {
				return nil, nil
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s is not numeric: %q", key, r.String())
			}
			return finite(key, v)
		default:
			return nil, fmt.Errorf("%s has unsupported type %s", key, r.Type)
		}
	}
	return nil, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
