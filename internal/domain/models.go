package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Domain contains the records exchanged with the attendance backend. The
// client never validates them; they exist so callers can build request
// bodies and decode responses without hand-written maps.

// Record is an opaque request body keyed by backend field name.
type Record map[string]any

type User struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// AttendanceCheck is the payload scanned from a QR code.
type AttendanceCheck struct {
	QRData string `json:"qr_data"`
}

// QRRequest selects the user and day a QR code is generated or mailed for.
type QRRequest struct {
	UserID int64  `json:"user_id"`
	Date   string `json:"date,omitempty"`
}

// QRCode is a generated code: a PNG data URL and the payload it encodes.
type QRCode struct {
	Image string `json:"qr_code"`
	Data  string `json:"qr_data"`
}

const pngDataURLPrefix = "data:image/png;base64,"

// PNG decodes the image bytes from the data URL.
func (q QRCode) PNG() ([]byte, error) {
	if !strings.HasPrefix(q.Image, pngDataURLPrefix) {
		return nil, errors.New("qr code is not a png data url")
	}
	img, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(q.Image, pngDataURLPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode qr code image: %w", err)
	}
	return img, nil
}

type MakeUpRequest struct {
	ID             int64  `json:"id,omitempty"`
	Name           string `json:"name"`
	Subject        string `json:"subject"`
	OriginalDate   string `json:"original_date"`
	OriginalPeriod string `json:"original_period"`
	NewDate        string `json:"new_date"`
	NewPeriod      string `json:"new_period"`
	Status         string `json:"status,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

type AuthStatus struct {
	LoggedIn      bool `json:"logged_in"`
	StaffLoggedIn bool `json:"staff_logged_in"`
}

// ImportedData is one spreadsheet import as persisted by the backend.
type ImportedData struct {
	ID              int64            `json:"id,omitempty"`
	Filename        string           `json:"filename"`
	ImportDate      string           `json:"import_date,omitempty"`
	BasicInfo       *BasicInfo       `json:"basic_info,omitempty"`
	AttendanceDates []AttendanceDate `json:"attendance_dates"`
}

type BasicInfo struct {
	Name        string     `json:"name"`
	Department  string     `json:"department"`
	Subject     string     `json:"subject"`
	Schedule    string     `json:"schedule"`
	PeriodClass string     `json:"period_class"`
	TimeSlot    string     `json:"time_slot"`
	RangeData   [][]string `json:"range_data"`
}

type AttendanceDate struct {
	RowNumber      int    `json:"row_number"`
	DateText       string `json:"date_text"`
	AttendanceMark string `json:"attendance_mark"`
	CheckInTime    string `json:"check_in_time"`
	CheckOutTime   string `json:"check_out_time"`
	Hours          string `json:"hours"`
	Notes          string `json:"notes"`
}

type TeacherSalary struct {
	ID                int64  `json:"id,omitempty"`
	TeacherName       string `json:"teacher_name"`
	SalaryPerClass    int64  `json:"salary_per_class"`
	TransportationFee int64  `json:"transportation_fee"`
	CreatedAt         string `json:"created_at,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

type PaidLeave struct {
	ID          int64  `json:"id,omitempty"`
	TeacherName string `json:"teacher_name"`
	Date        string `json:"date"`
	Reason      string `json:"reason,omitempty"`
}
