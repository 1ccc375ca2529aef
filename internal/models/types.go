package models

import (
	"context"
	"fmt"
	"reflect"

	"github.com/justsurfingit/resume-builder/pkg/resume"
	"gorm.io/gorm/schema"
)

func init() {
	schema.RegisterSerializer("resume", ResumeDataSerializer{})
}

// ResumeDataSerializer stores a resume document as JSON text. Documents
// are decoded on top of the defaults so rows written by older versions
// gain new keys on read.
type ResumeDataSerializer struct{}

func (ResumeDataSerializer) Scan(ctx context.Context, field *schema.Field, dst reflect.Value, dbValue any) error {
	var raw []byte
	switch v := dbValue.(type) {
	case nil:
		field.ReflectValueOf(ctx, dst).Set(reflect.Zero(field.FieldType))
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scanning resume data: unsupported type %T", dbValue)
	}

	data, err := resume.Unmarshal(raw)
	if err != nil {
		return err
	}
	field.ReflectValueOf(ctx, dst).Set(reflect.ValueOf(data))
	return nil
}

func (ResumeDataSerializer) Value(ctx context.Context, field *schema.Field, dst reflect.Value, fieldValue any) (any, error) {
	data, ok := fieldValue.(*resume.ResumeData)
	if !ok || data == nil {
		data = resume.Default()
	}
	raw, err := resume.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
