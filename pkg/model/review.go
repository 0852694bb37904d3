package model

import "time"

type Review struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	LotID     string    `json:"lot_id" bson:"lot_id" validate:"required,mongodb"`
	UserID    string    `json:"user_id" bson:"user_id" validate:"required"`
	Rating    int       `json:"rating" bson:"rating" validate:"required,min=1,max=5"`
	Title     string    `json:"title,omitempty" bson:"title" validate:"omitempty,max=100"`
	Comment   string    `json:"comment" bson:"comment" validate:"required,min=10,max=500"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type ReviewUpdate struct {
	Rating  *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Title   *string `json:"title,omitempty" validate:"omitempty,max=100"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,min=10,max=500"`
}
