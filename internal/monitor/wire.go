package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/VaTka/wakame/internal/domain"
)

// unwrapPayload 取出响应数据，支持 {code,result}、{ok,data}、{data} 与裸数据。
// code 非 2000 或 ok=false 时返回错误
func unwrapPayload(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("null"), nil
	}
	if body[0] != '{' {
		return json.RawMessage(body), nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if raw, ok := env["code"]; ok {
		var code int
		if err := json.Unmarshal(raw, &code); err == nil && code != 2000 {
			return nil, fmt.Errorf("api error: code %d: %s", code, messageOf(env))
		}
		if result, ok := env["result"]; ok {
			return result, nil
		}
	}
	if raw, ok := env["ok"]; ok {
		var okFlag flexBool
		if err := json.Unmarshal(raw, &okFlag); err == nil && okFlag.Valid && !okFlag.Value {
			return nil, fmt.Errorf("api error: %s", messageOf(env))
		}
	}
	if data, ok := env["data"]; ok {
		return data, nil
	}
	return json.RawMessage(body), nil
}

func messageOf(env map[string]json.RawMessage) string {
	for _, k := range []string{"message", "error", "msg"} {
		if raw, ok := env[k]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				return s
			}
		}
	}
	return "unknown"
}

// flexBool 接受 true/false、0/1、"1"/"true"、null
type flexBool struct {
	Value bool
	Valid bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "null", "":
		*b = flexBool{}
	case "true", "1":
		*b = flexBool{Value: true, Valid: true}
	case "false", "0":
		*b = flexBool{Value: false, Valid: true}
	default:
		return fmt.Errorf("invalid bool %s", data)
	}
	return nil
}

// flexFloat 接受数字、数字字符串、null；非数字视为缺失
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "null" || s == "" {
		*f = flexFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*f = flexFloat{}
		return nil
	}
	*f = flexFloat{Value: v, Valid: true}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// 旧接口返回 "YYYY-MM-DD HH:mm:ss"（UTC，无时区）
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

// parseUTC 无时区的时间按 UTC 解释
func parseUTC(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

type wireReading struct {
	ID      int64     `json:"id"`
	TS      string    `json:"ts"`
	Raw     *string   `json:"raw"`
	Weight  flexFloat `json:"weight"`
	Unit    *string   `json:"unit"`
	Status  *string   `json:"status"`
	Source  *string   `json:"source"`
	Process *string   `json:"process"`
	Stable  flexBool  `json:"stable"`
	IsError flexBool  `json:"is_error"`
}

func (w wireReading) toReading() (domain.Reading, error) {
	ts, err := parseUTC(w.TS)
	if err != nil {
		return domain.Reading{}, err
	}
	r := domain.Reading{
		ID:        w.ID,
		Timestamp: ts,
		Raw:       w.Raw,
		Weight:    w.Weight.ptr(),
		Unit:      deref(w.Unit),
		Status:    deref(w.Status),
		Source:    deref(w.Source),
		Process:   domain.Process(deref(w.Process)),
		IsError:   w.IsError.Value,
	}
	if w.Stable.Valid {
		stable := w.Stable.Value
		r.Stable = &stable
	}
	return r, nil
}

type wireBucket struct {
	Start     string    `json:"bucket_start_utc"`
	AvgWeight flexFloat `json:"avg_weight"`
	MinWeight flexFloat `json:"min_weight"`
	MaxWeight flexFloat `json:"max_weight"`
	Count     flexFloat `json:"count"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// decodeReading null 返回 nil
func decodeReading(payload json.RawMessage) (*domain.Reading, error) {
	if isNull(payload) {
		return nil, nil
	}
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("failed to decode reading: %w", err)
	}
	r, err := w.toReading()
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// decodeReadings 时间戳无法解析的条目被跳过
func decodeReadings(payload json.RawMessage) ([]domain.Reading, error) {
	if isNull(payload) {
		return nil, nil
	}
	var ws []wireReading
	if err := json.Unmarshal(payload, &ws); err != nil {
		return nil, fmt.Errorf("failed to decode readings: %w", err)
	}
	out := make([]domain.Reading, 0, len(ws))
	for _, w := range ws {
		r, err := w.toReading()
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// decodeBuckets 接受桶数组或 {data:[...], windowMin, stepMin}；avg 缺失的桶被跳过
func decodeBuckets(payload json.RawMessage) ([]domain.Bucket, error) {
	if isNull(payload) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var inner struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("failed to decode aggregates: %w", err)
		}
		payload = inner.Data
		if isNull(payload) {
			return nil, nil
		}
	}

	var ws []wireBucket
	if err := json.Unmarshal(payload, &ws); err != nil {
		return nil, fmt.Errorf("failed to decode aggregates: %w", err)
	}
	out := make([]domain.Bucket, 0, len(ws))
	for _, w := range ws {
		start, err := parseUTC(w.Start)
		if err != nil || !w.AvgWeight.Valid {
			continue
		}
		out = append(out, domain.Bucket{
			Start:     start,
			AvgWeight: w.AvgWeight.Value,
			MinWeight: w.MinWeight.Value,
			MaxWeight: w.MaxWeight.Value,
			Count:     int(w.Count.Value),
		})
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	return len(s) == 0 || bytes.Equal(s, []byte("null"))
}
