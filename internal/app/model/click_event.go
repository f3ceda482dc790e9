package model

import "time"

// ClickEvent is one recorded tracking beacon.
// IPAddress and the GPS triple are only ever non-nil when ConsentGiven is true.
type ClickEvent struct {
	ID             int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	RegistrationID *int64  `json:"registration_id" gorm:"index"`
	IPAddress      *string `json:"ip_address" gorm:"type:text"`
	IPHash         *string `json:"ip_hash" gorm:"size:64;index"`
	UserAgent      *string `json:"user_agent" gorm:"size:64"`
	DeviceType     string  `json:"device_type" gorm:"size:16"`
	Browser        string  `json:"browser" gorm:"size:32"`

	Latitude  *float64 `json:"latitude" gorm:"type:double precision"`
	Longitude *float64 `json:"longitude" gorm:"type:double precision"`
	Accuracy  *float64 `json:"accuracy" gorm:"type:double precision"`

	Country  *string `json:"country" gorm:"size:64"`
	City     *string `json:"city" gorm:"size:128"`
	Region   *string `json:"region" gorm:"size:128"`
	Timezone *string `json:"timezone" gorm:"size:64"`
	ISP      *string `json:"isp" gorm:"size:255"`

	ConsentGiven     bool       `json:"consent_given" gorm:"not null;default:false"`
	ConsentTimestamp *time.Time `json:"consent_timestamp"`

	ElementID   *string `json:"element_id" gorm:"size:255"`
	ElementType *string `json:"element_type" gorm:"size:64"`
	PageURL     *string `json:"page_url" gorm:"type:text"`

	ClickedAt time.Time `json:"clicked_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`

	// IPMasked is filled on the admin read path only.
	IPMasked string `json:"ip_masked,omitempty" gorm:"-"`
}

func (ClickEvent) TableName() string {
	return "clicks_tracking"
}

// HasGPS reports whether both coordinates are stored.
func (e *ClickEvent) HasGPS() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// DashboardStats are the four aggregate counts shown on the admin dashboard.
type DashboardStats struct {
	TotalClicks int64 `json:"totalClicks"`
	GPSClicks   int64 `json:"gpsClicks"`
	UniqueUsers int64 `json:"uniqueUsers"`
	TodayClicks int64 `json:"todayClicks"`
}

// ClickRecorded is the notification published after a click is stored. It carries no personal data.
type ClickRecorded struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	Consent   bool      `json:"consent"`
	HasGPS    bool      `json:"has_gps"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
	Device    string    `json:"device,omitempty"`
	ClickedAt time.Time `json:"clicked_at"`
}
