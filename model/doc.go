// Package model provides the generic object codec shared by every MMIF
// entity.
//
// Free-form property values are held in Value, a closed variant over the
// JSON value space that keeps integers and floats apart. Dict, Map and List
// are insertion-ordered containers; Map is the ordered property bag used
// for annotation properties and additional (undeclared) attributes.
//
// Entities encode with EncodeObject, listing their declared attributes as
// Fields, and decode with DecodeObject against a Shape that names the known
// and required attributes and whether unknown keys are tolerated:
//
//	d, err := model.DecodeObject(data, model.Shape{
//		Entity:   "View",
//		Required: []string{"id", "metadata", "annotations"},
//	})
//
// Decoding walks the input with gjson so object key order is kept; pretty
// output is produced with tidwall/pretty.
package model
