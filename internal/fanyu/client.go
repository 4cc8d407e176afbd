// Package fanyu is the HTTP client for the remote booking platform.
// Every call performs one request and unwraps the platform's
// {status, content} envelope; retry policy belongs to the caller.
package fanyu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/fanyu-assistant/internal/booking"
)

const statusOK = "OK"

type Client struct {
	hc   *http.Client
	base string

	mu    sync.Mutex
	token string
}

func New(base string) *Client {
	return &Client{
		hc:   &http.Client{Timeout: 10 * time.Second},
		base: strings.TrimRight(base, "/"),
	}
}

// User is the login response payload. The token authenticates all
// subsequent calls.
type User struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

// Store is one entry of the platform's store directory.
type Store struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserCourse is one of the user's bookings as the platform sees it.
type UserCourse struct {
	ID        string           `json:"id"`
	Date      string           `json:"beginTime_D"`
	StartTime string           `json:"beginTime_"`
	Course    booking.NamedRef `json:"course"`
	Store     booking.NamedRef `json:"store"`
}

// Login authenticates and remembers the returned token for later
// calls on this client.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	form := url.Values{
		"username":   {username},
		"password":   {password},
		"rememberMe": {"1"},
	}
	content, err := c.do(ctx, http.MethodPost, "/user/login", nil, form)
	if err != nil {
		return User{}, err
	}
	var u User
	if err := json.Unmarshal(content, &u); err != nil {
		return User{}, fmt.Errorf("login response: %w", err)
	}
	c.mu.Lock()
	c.token = u.Token
	c.mu.Unlock()
	return u, nil
}

func (c *Client) FetchStores(ctx context.Context) ([]Store, error) {
	content, err := c.do(ctx, http.MethodGet, "/store/list", fullPage(nil), nil)
	if err != nil {
		return nil, err
	}
	var res struct {
		List []Store `json:"list"`
	}
	if err := json.Unmarshal(content, &res); err != nil {
		return nil, fmt.Errorf("store list response: %w", err)
	}
	return res.List, nil
}

// FetchCourses lists the schedule of one store starting at date
// (yyyy-MM-dd). The platform groups courses per day; the groups are
// flattened here. No canJoin filtering — that is the caller's job.
func (c *Client) FetchCourses(ctx context.Context, storeID, date string) ([]booking.Course, error) {
	q := fullPage(url.Values{
		"begin":      {date},
		"storeId":    {storeID},
		"courseType": {"1"},
	})
	content, err := c.do(ctx, http.MethodGet, "/course/planList", q, nil)
	if err != nil {
		return nil, err
	}
	var days [][]booking.Course
	if err := json.Unmarshal(content, &days); err != nil {
		return nil, fmt.Errorf("course list response: %w", err)
	}
	var courses []booking.Course
	for _, day := range days {
		courses = append(courses, day...)
	}
	return courses, nil
}

func (c *Client) FetchUserCards(ctx context.Context) ([]booking.Card, error) {
	content, err := c.do(ctx, http.MethodGet, "/user-card/list", fullPage(url.Values{"status": {"1"}}), nil)
	if err != nil {
		return nil, err
	}
	var res struct {
		List []booking.Card `json:"list"`
	}
	if err := json.Unmarshal(content, &res); err != nil {
		return nil, fmt.Errorf("card list response: %w", err)
	}
	return res.List, nil
}

// FetchUserCourses lists the user's bookings on the platform side.
func (c *Client) FetchUserCourses(ctx context.Context) ([]UserCourse, error) {
	content, err := c.do(ctx, http.MethodGet, "/user-course/list", fullPage(nil), nil)
	if err != nil {
		return nil, err
	}
	var res struct {
		List []UserCourse `json:"list"`
	}
	if err := json.Unmarshal(content, &res); err != nil {
		return nil, fmt.Errorf("user course list response: %w", err)
	}
	return res.List, nil
}

// BookCourse books one course plan against a card. The raw content is
// returned for logging; the caller only relies on the error.
func (c *Client) BookCourse(ctx context.Context, coursePlanID, cardID string) (json.RawMessage, error) {
	form := url.Values{
		"coursePlanId": {coursePlanID},
		"userCardId":   {cardID},
	}
	return c.do(ctx, http.MethodPost, "/user-course/yuyue", nil, form)
}

// CancelCourse cancels a booking by its booking id. Not used by the
// polling loop; exposed for the manual cancellation surface.
func (c *Client) CancelCourse(ctx context.Context, bookID string) (json.RawMessage, error) {
	form := url.Values{
		"id":     {bookID},
		"remark": {"1"},
	}
	return c.do(ctx, http.MethodPost, "/user-course/cancel", nil, form)
}

func (c *Client) do(ctx context.Context, method, path string, query, form url.Values) (json.RawMessage, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("token", c.token)
	}
	c.mu.Unlock()

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, truncate(raw))
	}

	var env struct {
		Status  string          `json:"status"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%s %s: invalid envelope: %w", method, path, err)
	}
	if env.Status != statusOK {
		return nil, fmt.Errorf("%s %s: remote status %q: %s", method, path, env.Status, truncate(raw))
	}
	return env.Content, nil
}

// fullPage adds the platform's "give me everything" pagination params.
func fullPage(q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}
	q.Set("page.current", "1")
	q.Set("page.size", "-1")
	return q
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
