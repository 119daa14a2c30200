package api

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"tasks-api/domain"
)

const maxBodySize = 1 << 20

// readBody returns at most maxBodySize bytes of the request body. Read
// failures yield an empty body.
func readBody(c echo.Context) []byte {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return nil
	}
	return data
}

// decodeObject parses a JSON object leniently: malformed JSON and non-object
// documents are treated as an empty object.
func decodeObject(body []byte) map[string]any {
	var obj map[string]any
	if err := sonic.Unmarshal(body, &obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

// decodeTaskPayload maps a request object onto a TaskPayload. The returned
// messages list fields whose JSON type cannot be used.
func decodeTaskPayload(obj map[string]any) (domain.TaskPayload, []string) {
	var errs []string
	p := domain.TaskPayload{
		Title:    stringField(obj, "title", &errs),
		Notes:    stringField(obj, "notes", &errs),
		Priority: stringField(obj, "priority", &errs),
		DueDate:  stringField(obj, "due_date", &errs),
	}
	if v, ok := obj["completed"]; ok {
		p.Completed = domain.Some(truthy(v))
	}
	return p, errs
}

// decodeUpdate reads update fields one at a time in title, notes, priority,
// completed order. The first type or validation error wins.
func decodeUpdate(obj map[string]any) (domain.TaskChanges, error) {
	var p domain.TaskPayload
	steps := []func(errs *[]string){
		func(errs *[]string) { p.Title = stringField(obj, "title", errs) },
		func(errs *[]string) { p.Notes = stringField(obj, "notes", errs) },
		func(errs *[]string) { p.Priority = stringField(obj, "priority", errs) },
		func(*[]string) {
			if v, ok := obj["completed"]; ok {
				p.Completed = domain.Some(truthy(v))
			}
		},
	}
	for _, step := range steps {
		var errs []string
		step(&errs)
		if len(errs) > 0 {
			return domain.TaskChanges{}, &domain.ValidationError{Errors: errs}
		}
		if _, err := domain.ValidateUpdate(p); err != nil {
			return domain.TaskChanges{}, err
		}
	}
	return domain.ValidateUpdate(p)
}

func stringField(obj map[string]any, key string, errs *[]string) domain.Optional[string] {
	v, ok := obj[key]
	if !ok {
		return domain.Optional[string]{}
	}
	switch s := v.(type) {
	case nil:
		return domain.Some("")
	case string:
		return domain.Some(s)
	default:
		*errs = append(*errs, key+" must be a string")
		return domain.Optional[string]{}
	}
}

// truthy follows JSON truthiness: null, false, 0, "" and empty containers
// are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// renderValue formats a decoded JSON value for error messages.
func renderValue(v any) string {
	if v == nil {
		return "null"
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
