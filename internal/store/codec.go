package store

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
)

// ToDoc encodes a model into a generic document using its bson tags.
func ToDoc(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromDoc decodes a generic document into dest.
func FromDoc(doc bson.M, dest interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, dest)
}

// DecodeAll decodes docs into dest, a pointer to a slice of models.
func DecodeAll(docs []bson.M, dest interface{}) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("store: dest must be a pointer to a slice, got %T", dest)
	}
	slice := rv.Elem()
	elemType := slice.Type().Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(docs))
	for _, doc := range docs {
		item := reflect.New(elemType)
		if err := FromDoc(doc, item.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, item.Elem())
	}
	slice.Set(out)
	return nil
}

// Patch turns a partial-update struct into the set of fields it assigns.
// Fields left nil are omitted through their omitempty tags.
func Patch(update interface{}) (map[string]interface{}, error) {
	doc, err := ToDoc(update)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}(doc), nil
}

// IDOf returns the _id of a model, or an empty string.
func IDOf(v interface{}) string {
	doc, err := ToDoc(v)
	if err != nil {
		return ""
	}
	id, _ := doc["_id"].(string)
	return id
}
