package api

import "context"

// UserService covers /users.
type UserService struct{ service }

func (s *UserService) List(ctx context.Context) (Response, error) {
	return s.call(ctx, usersList, Params{})
}

func (s *UserService) Get(ctx context.Context, id int64) (Response, error) {
	return s.call(ctx, usersGet, Params{Path: idParam(id)})
}

func (s *UserService) Create(ctx context.Context, user any) (Response, error) {
	return s.call(ctx, usersCreate, Params{Body: user})
}

func (s *UserService) Delete(ctx context.Context, id int64) (Response, error) {
	return s.call(ctx, usersDelete, Params{Path: idParam(id)})
}

// Import bulk-creates users from payload.
func (s *UserService) Import(ctx context.Context, payload any) (Response, error) {
	return s.call(ctx, usersImport, Params{Body: payload})
}

// QRService generates and mails attendance QR codes.
type QRService struct{ service }

func (s *QRService) Generate(ctx context.Context, params any) (Response, error) {
	return s.call(ctx, qrGenerate, Params{Body: params})
}

func (s *QRService) SendEmail(ctx context.Context, params any) (Response, error) {
	return s.call(ctx, qrSendEmail, Params{Body: params})
}

// SendEmailAll mails today's QR code to every registered user.
func (s *QRService) SendEmailAll(ctx context.Context) (Response, error) {
	return s.call(ctx, qrSendEmailAll, Params{})
}

// AttendanceService records check-ins and lists attendance.
type AttendanceService struct{ service }

// Check records a check-in or check-out from a scanned QR payload.
func (s *AttendanceService) Check(ctx context.Context, event any) (Response, error) {
	return s.call(ctx, attendanceCheck, Params{Body: event})
}

// List returns attendance records filtered by query (user_id, start_date, end_date).
func (s *AttendanceService) List(ctx context.Context, query map[string]string) (Response, error) {
	return s.call(ctx, attendanceList, Params{Query: query})
}

func (s *AttendanceService) SubmitMakeUp(ctx context.Context, request any) (Response, error) {
	return s.call(ctx, makeUpsCreate, Params{Body: request})
}

func (s *AttendanceService) UpdateMakeUpStatus(ctx context.Context, id int64, status string) (Response, error) {
	return s.call(ctx, makeUpsUpdate, Params{
		Path: idParam(id),
		Body: map[string]string{"status": status},
	})
}

// AuthService manages the cookie session.
type AuthService struct{ service }

func (s *AuthService) Login(ctx context.Context, password string) (Response, error) {
	return s.call(ctx, authLogin, Params{Body: map[string]string{"password": password}})
}

// StaffLogin signs in with the staff (liaison) role.
func (s *AuthService) StaffLogin(ctx context.Context, password string) (Response, error) {
	return s.call(ctx, authStaffLogin, Params{Body: map[string]string{"password": password}})
}

func (s *AuthService) Logout(ctx context.Context) (Response, error) {
	return s.call(ctx, authLogout, Params{})
}

func (s *AuthService) Status(ctx context.Context) (Response, error) {
	return s.call(ctx, authStatus, Params{})
}

// ImportService stores and browses spreadsheet imports.
type ImportService struct{ service }

func (s *ImportService) Save(ctx context.Context, data any) (Response, error) {
	return s.call(ctx, importsSave, Params{Body: data})
}

func (s *ImportService) List(ctx context.Context) (Response, error) {
	return s.call(ctx, importsList, Params{})
}

func (s *ImportService) Get(ctx context.Context, id int64) (Response, error) {
	return s.call(ctx, importsGet, Params{Path: idParam(id)})
}

func (s *ImportService) Delete(ctx context.Context, id int64) (Response, error) {
	return s.call(ctx, importsDelete, Params{Path: idParam(id)})
}

// MakeUpService manages make-up class requests.
type MakeUpService struct{ service }

func (s *MakeUpService) List(ctx context.Context) (Response, error) {
	return s.call(ctx, makeUpsList, Params{})
}

func (s *MakeUpService) Create(ctx context.Context, request any) (Response, error) {
	return s.call(ctx, makeUpsCreate, Params{Body: request})
}

// Update applies a partial patch to the request with the given id.
func (s *MakeUpService) Update(ctx context.Context, id int64, patch any) (Response, error) {
	return s.call(ctx, makeUpsUpdate, Params{Path: idParam(id), Body: patch})
}

// SalaryService manages per-teacher salary settings.
type SalaryService struct{ service }

func (s *SalaryService) List(ctx context.Context) (Response, error) {
	return s.call(ctx, salariesList, Params{})
}

// Save creates or updates a salary setting; the backend keys the upsert on the id inside record.
func (s *SalaryService) Save(ctx context.Context, record any) (Response, error) {
	return s.call(ctx, salariesSave, Params{Body: record})
}

func (s *SalaryService) Delete(ctx context.Context, id int64) (Response, error) {
	return s.call(ctx, salariesDelete, Params{Path: idParam(id)})
}

// PaidLeaveService records paid leave.
type PaidLeaveService struct{ service }

func (s *PaidLeaveService) Create(ctx context.Context, record any) (Response, error) {
	return s.call(ctx, paidLeaveCreate, Params{Body: record})
}

func (s *PaidLeaveService) List(ctx context.Context) (Response, error) {
	return s.call(ctx, paidLeaveList, Params{})
}
