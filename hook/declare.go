package hook

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/errors"
)

// On is a marker field type declaring a hook on the enclosing struct.
// Tag format: `hook:"event_type" index:"5:50:10,60:" method:"MethodName"`.
// The method tag is required. A missing hook tag derives the event type
// from the method name (TrainEpochEnd -> train_epoch_end). A missing index
// tag fires for every index.
type On struct{}

var onType = reflect.TypeOf(On{})

// hookInfo holds hook metadata extracted from marker fields.
type hookInfo struct {
	fieldName  string
	methodName string
	typ        entities.EventType
	filter     entities.IndexFilter
}

// Discover registers every hook declared with On markers on receiver,
// including markers of embedded structs. Methods are resolved on receiver
// itself, so the hooks act on that value.
func Discover(t *Table, receiver any) error {
	rv := reflect.ValueOf(receiver)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return &errors.DeclarationError{Unit: t.owner, Err: fmt.Errorf("receiver must be a pointer to struct, got %T", receiver)}
	}

	infos, err := extractHooks(rv.Elem().Type())
	if err != nil {
		return &errors.DeclarationError{Unit: t.owner, Err: err}
	}

	for _, info := range infos {
		method := rv.MethodByName(info.methodName)
		if !method.IsValid() {
			return &errors.DeclarationError{
				Unit:  t.owner,
				Field: info.fieldName,
				Err:   fmt.Errorf("no method %s for hook %s", info.methodName, info.typ),
			}
		}

		fn, err := wrapValue(method)
		if err != nil {
			return &errors.DeclarationError{
				Unit:  t.owner,
				Field: info.fieldName,
				Err:   fmt.Errorf("method %s: %w", info.methodName, err),
			}
		}

		h := &Hook{Type: info.typ, Filter: info.filter, Name: info.methodName, fn: fn}
		if err := t.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// extractHooks finds all On fields, descending into embedded structs
// before continuing with the fields that follow them.
func extractHooks(t reflect.Type) ([]hookInfo, error) {
	var infos []hookInfo

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct && field.Type != onType {
			nested, err := extractHooks(field.Type)
			if err != nil {
				return nil, err
			}
			infos = append(infos, nested...)
			continue
		}

		if field.Type != onType {
			continue
		}

		methodName := field.Tag.Get("method")
		if methodName == "" {
			return nil, fmt.Errorf("hook field %s: missing method tag", field.Name)
		}

		typ := entities.EventType(field.Tag.Get("hook"))
		if typ == "" {
			typ = entities.EventType(toSnakeCase(methodName))
		}

		filter, err := entities.ParseFilter(field.Tag.Get("index"))
		if err != nil {
			return nil, fmt.Errorf("hook field %s: %w", field.Name, err)
		}

		infos = append(infos, hookInfo{
			fieldName:  field.Name,
			methodName: methodName,
			typ:        typ,
			filter:     filter,
		})
	}

	return infos, nil
}

// DeclaredTypes returns the event types named by On markers on v's type.
// Malformed markers are skipped; Discover reports them.
func DeclaredTypes(v any) entities.EventSet {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := entities.NewEventSet()
	if t == nil || t.Kind() != reflect.Struct {
		return out
	}
	infos, _ := extractHooks(t)
	for _, info := range infos {
		out.Add(info.typ)
	}
	return out
}

// Declarer is implemented by values that register hooks programmatically
// once bound.
type Declarer interface {
	DeclareHooks(ctx context.Context, t *Table) error
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

func toSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
