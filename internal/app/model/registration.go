package model

import "time"

// Registration is one submitted sign-up form. Rows are never updated.
type Registration struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Email       string    `json:"email" gorm:"size:255;not null"`
	Phone       string    `json:"phone" gorm:"size:32;not null"`
	FullName    string    `json:"full_name" gorm:"size:255;not null"`
	DOB         time.Time `json:"dob" gorm:"type:date;not null"`
	Plate       string    `json:"plate" gorm:"size:32;not null"`
	VehicleType string    `json:"vehicle_type" gorm:"size:64;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
}

func (Registration) TableName() string {
	return "registrations"
}
