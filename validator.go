package mongoschema

// Validator wraps a derived schema document in the $jsonSchema form expected
// by collection validator specifications.
func Validator(schema Document) Document {
	return Document{{"$jsonSchema", schema}}
}

// CreateCollection returns the create-collection command document installing
// schema as the collection validator. Issuing the command is the caller's
// responsibility.
func CreateCollection(name string, schema Document) Document {
	return Document{{"create", name}, {"validator", Validator(schema)}}
}

// CollMod returns the collMod command document replacing the validator of an
// existing collection.
func CollMod(name string, schema Document) Document {
	return Document{{"collMod", name}, {"validator", Validator(schema)}}
}
