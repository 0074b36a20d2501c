package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kintai-hq/kintai-client/internal/domain"
)

// bodyBuilder assembles a request body from a command's field flags.
type bodyBuilder func() (any, error)

// bodyFrom prefers --data and falls back to the field flags.
func (a *App) bodyFrom(raw string, build bodyBuilder) (any, error) {
	if strings.TrimSpace(raw) != "" {
		return a.readData(raw)
	}
	return build()
}

func qrRequestFlags(cmd *cobra.Command) bodyBuilder {
	var req domain.QRRequest
	cmd.Flags().Int64Var(&req.UserID, "user-id", 0, "user the code is for")
	cmd.Flags().StringVar(&req.Date, "date", "", "day the code is valid for (YYYY-MM-DD, default today)")
	return func() (any, error) {
		if req.UserID <= 0 {
			return nil, errors.New("--user-id or --data is required")
		}
		return req, nil
	}
}

func attendanceCheckFlags(cmd *cobra.Command) bodyBuilder {
	var check domain.AttendanceCheck
	cmd.Flags().StringVar(&check.QRData, "qr-data", "", "payload scanned from the QR code (NAME|YYYY-MM-DD)")
	return func() (any, error) {
		check.QRData = strings.TrimSpace(check.QRData)
		if check.QRData == "" {
			return nil, errors.New("--qr-data or --data is required")
		}
		return check, nil
	}
}

func makeUpFlags(cmd *cobra.Command) bodyBuilder {
	var req domain.MakeUpRequest
	fields := []struct {
		flag  string
		usage string
		value *string
	}{
		{"name", "teacher name", &req.Name},
		{"subject", "subject of the class", &req.Subject},
		{"original-date", "date of the missed class", &req.OriginalDate},
		{"original-period", "period of the missed class", &req.OriginalPeriod},
		{"new-date", "date of the make-up class", &req.NewDate},
		{"new-period", "period of the make-up class", &req.NewPeriod},
	}
	for _, f := range fields {
		cmd.Flags().StringVar(f.value, f.flag, "", f.usage)
	}
	return func() (any, error) {
		var missing []string
		for _, f := range fields {
			*f.value = strings.TrimSpace(*f.value)
			if *f.value == "" {
				missing = append(missing, "--"+f.flag)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("missing %s (or pass --data)", strings.Join(missing, ", "))
		}
		return req, nil
	}
}

// describeAuth renders the login state of the session.
func describeAuth(status domain.AuthStatus) string {
	switch {
	case status.StaffLoggedIn:
		return "signed in as staff"
	case status.LoggedIn:
		return "signed in"
	default:
		return "not signed in"
	}
}
