package models

import "time"

// Setting is a key/value row of runtime-tunable configuration.
type Setting struct {
	Key       string    `gorm:"column:key;primary_key;type:varchar(128)" json:"key"`
	Value     string    `gorm:"column:value;type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string { return "setting" }
