package handler

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexBool accepts JSON booleans, 0/1 and the usual string spellings. Anything else is false.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	raw := strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`))
	switch raw {
	case "true", "1", "on", "yes":
		*b = true
	default:
		*b = false
	}
	return nil
}

// optFloat is a number that may be absent, null, empty, or sent as a numeric string.
type optFloat struct {
	value float64
	set   bool
}

func (f *optFloat) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*f = optFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*f = optFloat{}
		return nil
	}
	*f = optFloat{value: v, set: true}
	return nil
}

func (f optFloat) ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

// optID is a positive integer reference that may arrive as a number or a string.
type optID struct {
	value int64
	set   bool
}

func (id *optID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		*id = optID{}
		return nil
	}
	*id = optID{value: v, set: true}
	return nil
}

func (id optID) ptr() *int64 {
	if !id.set {
		return nil
	}
	v := id.value
	return &v
}

// TrackClickRequest is the beacon body. Both camelCase and snake_case page URLs are accepted.
type TrackClickRequest struct {
	RegistrationID optID    `json:"registration_id"`
	Latitude       optFloat `json:"latitude"`
	Longitude      optFloat `json:"longitude"`
	Accuracy       optFloat `json:"accuracy"`
	ConsentGiven   flexBool `json:"consent_given"`
	ElementID      string   `json:"elementId"`
	ElementType    string   `json:"elementType"`
	PageURL        string   `json:"pageUrl"`
	PageURLSnake   string   `json:"page_url"`
	IsContinuous   flexBool `json:"is_continuous"`
}

func decodeTrackClick(body []byte) (TrackClickRequest, error) {
	var req TrackClickRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, err
	}
	if req.PageURL == "" {
		req.PageURL = req.PageURLSnake
	}
	if req.ElementType == "" && bool(req.IsContinuous) {
		req.ElementType = "continuous"
	}
	return req, nil
}

// RegisterRequest is the sign-up form, posted either as JSON or url-encoded.
type RegisterRequest struct {
	Email       string `json:"email" form:"email"`
	Phone       string `json:"phone" form:"phone"`
	FullName    string `json:"fullName" form:"fullName"`
	DOB         string `json:"dob" form:"dob"`
	Plate       string `json:"plate" form:"plate"`
	VehicleType string `json:"vehicleType" form:"vehicleType"`
}
