package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"reflect"
)

// File is a named upload part
type File struct {
	Name    string
	Content []byte
}

type formField struct {
	name  string
	value any
}

// FormData is a multipart payload. It is encoded afresh for every attempt so
// a retried request sends the full body again.
type FormData struct {
	fields []formField
}

func NewFormData() *FormData {
	return &FormData{}
}

// Append adds a field. Nil values are skipped when encoding, a File becomes a
// file part, slice items are added one by one (files as files, anything else as JSON),
// and scalars are sent as text.
func (f *FormData) Append(name string, value any) *FormData {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// Encode writes the multipart body and returns it with its content type
func (f *FormData) Encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	for _, field := range f.fields {
		if err := writeField(mw, field.name, field.value); err != nil {
			return nil, "", fmt.Errorf("[FormData Encode] field %q: %w", field.name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("[FormData Encode] %w", err)
	}
	return buf, mw.FormDataContentType(), nil
}

func writeField(mw *multipart.Writer, name string, value any) error {
	v, ok := deref(value)
	if !ok {
		return nil
	}
	switch item := v.Interface().(type) {
	case File:
		return writeFile(mw, name, item)
	case string:
		return mw.WriteField(name, item)
	case []byte:
		return mw.WriteField(name, string(item))
	}

	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		for i := 0; i < v.Len(); i++ {
			elem, ok := deref(v.Index(i).Interface())
			if !ok {
				continue
			}
			if file, isFile := elem.Interface().(File); isFile {
				if err := writeFile(mw, name, file); err != nil {
					return err
				}
				continue
			}
			encoded, err := json.Marshal(elem.Interface())
			if err != nil {
				return err
			}
			if err := mw.WriteField(name, string(encoded)); err != nil {
				return err
			}
		}
		return nil
	}

	if v.Kind() == reflect.Struct || v.Kind() == reflect.Map {
		encoded, err := json.Marshal(v.Interface())
		if err != nil {
			return err
		}
		return mw.WriteField(name, string(encoded))
	}
	return mw.WriteField(name, fmt.Sprint(v.Interface()))
}

func writeFile(mw *multipart.Writer, name string, file File) error {
	part, err := mw.CreateFormFile(name, file.Name)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Content)
	return err
}
