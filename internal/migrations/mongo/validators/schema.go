// Package validators holds the $jsonSchema validators applied to each
// collection. They mirror the model structs and are a last line of defence
// behind the request validators, so they only check shape.
package validators

import "go.mongodb.org/mongo-driver/bson"

// document wraps properties into a $jsonSchema validator. Unknown fields are
// allowed so a rolling deploy can add fields before the schema catches up.
func document(required []string, properties bson.M) bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":             "object",
			"required":             required,
			"additionalProperties": true,
			"properties":           properties,
		},
	}
}

func text() bson.M { return bson.M{"bsonType": "string"} }

func nonEmpty() bson.M { return bson.M{"bsonType": "string", "minLength": 1} }

func bounded(minLen, maxLen int) bson.M {
	s := text()
	if minLen > 0 {
		s["minLength"] = minLen
	}
	if maxLen > 0 {
		s["maxLength"] = maxLen
	}
	return s
}

func matching(pattern string) bson.M { return bson.M{"bsonType": "string", "pattern": pattern} }

// hexID is an ObjectID stored as its hex string, the way repositories keep
// cross-collection references.
func hexID() bson.M { return bounded(24, 24) }

func objectID() bson.M { return bson.M{"bsonType": "objectId"} }

func date() bson.M { return bson.M{"bsonType": "date"} }

func boolean() bson.M { return bson.M{"bsonType": "bool"} }

func number(minimum float64) bson.M {
	return bson.M{"bsonType": []string{"double", "int", "long", "decimal"}, "minimum": minimum}
}

func integer(minimum, maximum int) bson.M {
	return bson.M{"bsonType": []string{"int", "long"}, "minimum": minimum, "maximum": maximum}
}

func oneOf(values ...string) bson.M { return bson.M{"enum": values} }
