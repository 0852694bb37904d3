package validators

import "go.mongodb.org/mongo-driver/bson"

var ParkingLotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"address",
			"location",
			"total_spots",
			"available_spots",
			"is_open",
			"is_active",
			"owner_id",
			"created_at",
			"last_updated",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"address": bson.M{
				"bsonType": "object",
				"required": []string{"street", "city", "state", "zip_code", "country"},
				"properties": bson.M{
					"street":   bson.M{"bsonType": "string"},
					"city":     bson.M{"bsonType": "string"},
					"state":    bson.M{"bsonType": "string"},
					"zip_code": bson.M{"bsonType": "string"},
					"country":  bson.M{"bsonType": "string"},
				},
			},

			"location": bson.M{
				"bsonType": "object",
				"required": []string{"type", "coordinates"},
				"properties": bson.M{
					"type": bson.M{
						"bsonType": "string",
						"enum":     []string{"Point"},
					},
					"coordinates": bson.M{
						"bsonType": "array",
						"minItems": 2,
						"maxItems": 2,
						"items": bson.M{
							"bsonType": "double",
						},
					},
				},
			},

			"total_spots": bson.M{
				"bsonType": "int",
				"minimum":  1,
			},

			"available_spots": bson.M{
				"bsonType": "int",
				"minimum":  0,
			},

			"hourly_rate": bson.M{
				"bsonType": []string{"double", "int"},
				"minimum":  0,
			},

			"daily_rate": bson.M{
				"bsonType": []string{"double", "int"},
				"minimum":  0,
			},

			"currency": bson.M{
				"bsonType":  "string",
				"maxLength": 3,
			},

			"amenities": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "string",
					"enum": []string{
						"security",
						"covered",
						"electric-charging",
						"disabled-access",
						"valet",
						"shuttle",
						"bike-rack",
						"motorcycle-spots",
						"truck-spots",
						"24-7-access",
					},
				},
			},

			"is_open": bson.M{
				"bsonType": "bool",
			},

			"is_active": bson.M{
				"bsonType": "bool",
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"rating": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"average": bson.M{
						"bsonType": []string{"double", "int"},
						"minimum":  0,
						"maximum":  5,
					},
					"count": bson.M{
						"bsonType": []string{"long", "int"},
						"minimum":  0,
					},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"last_updated": bson.M{
				"bsonType": "date",
			},
		},
	},
}
