// Package api is the resource client facade of the attendance backend. Every
// operation issues exactly one request over the shared transport and returns
// the raw response, or the transport/HTTP error, without transforming it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/kintai-hq/kintai-client/pkg/httpclient"
)

// Response aliases the transport response for callers of the facade.
type Response = httpclient.Response

// Client groups the per-resource services. Build it once with New and share it.
type Client struct {
	transport httpclient.Transport

	Users      *UserService
	QR         *QRService
	Attendance *AttendanceService
	Auth       *AuthService
	Imports    *ImportService
	MakeUps    *MakeUpService
	Salaries   *SalaryService
	PaidLeave  *PaidLeaveService
}

type service struct {
	client *Client
}

// New wires every resource service to the given transport.
func New(t httpclient.Transport) (*Client, error) {
	if t == nil {
		return nil, errors.New("api transport must not be nil")
	}

	c := &Client{transport: t}
	base := service{client: c}
	c.Users = &UserService{base}
	c.QR = &QRService{base}
	c.Attendance = &AttendanceService{base}
	c.Auth = &AuthService{base}
	c.Imports = &ImportService{base}
	c.MakeUps = &MakeUpService{base}
	c.Salaries = &SalaryService{base}
	c.PaidLeave = &PaidLeaveService{base}
	return c, nil
}

// Health asks the backend whether it is up. It answers {"status":"healthy"}.
func (c *Client) Health(ctx context.Context) (Response, error) {
	return c.Call(ctx, health, Params{})
}

// Call issues the request described by ep and p.
func (c *Client) Call(ctx context.Context, ep Endpoint, p Params) (Response, error) {
	req, err := ep.Request(p)
	if err != nil {
		return nil, err
	}
	return c.transport.Do(ctx, req)
}

func (s service) call(ctx context.Context, ep Endpoint, p Params) (Response, error) {
	return s.client.Call(ctx, ep, p)
}

func idParam(id int64) map[string]string {
	return map[string]string{"id": strconv.FormatInt(id, 10)}
}

// Decode unmarshals a JSON response body into v.
func Decode(resp Response, v any) error {
	if resp == nil {
		return errors.New("decode: nil response")
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
