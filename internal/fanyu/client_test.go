package fanyu

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginAppliesToken(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/login":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "secret" {
				t.Errorf("unexpected credentials: %v", r.PostForm)
			}
			if r.PostForm.Get("rememberMe") != "1" {
				t.Errorf("rememberMe missing: %v", r.PostForm)
			}
			fmt.Fprint(w, `{"status":"OK","content":{"token":"tok-123","name":"alice"}}`)
		case "/user-card/list":
			gotToken = r.Header.Get("token")
			fmt.Fprint(w, `{"status":"OK","content":{"list":[{"id":"card-1","canUse":true}]}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	user, err := c.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Token != "tok-123" {
		t.Fatalf("token = %q", user.Token)
	}

	cards, err := c.FetchUserCards(ctx)
	if err != nil {
		t.Fatalf("fetch cards: %v", err)
	}
	if gotToken != "tok-123" {
		t.Fatalf("token header = %q, want tok-123", gotToken)
	}
	if len(cards) != 1 || cards[0].ID != "card-1" || !cards[0].CanUse {
		t.Fatalf("unexpected cards: %+v", cards)
	}
}

func TestFetchCoursesFlattensDayGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/course/planList" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("begin") != "2024-06-03" || q.Get("storeId") != "S1" || q.Get("courseType") != "1" {
			t.Errorf("unexpected query: %v", q)
		}
		if q.Get("page.current") != "1" || q.Get("page.size") != "-1" {
			t.Errorf("pagination params missing: %v", q)
		}
		fmt.Fprint(w, `{"status":"OK","content":[
			[{"id":"C1","storeId":"S1","beginTime_D":"2024-06-03","beginTime_":"19:00","canJoin":true,"course":{"name":"Yin Yoga"},"store":{"name":"Downtown"}}],
			[],
			[{"id":"C2","storeId":"S1","beginTime_D":"2024-06-05","beginTime_":"10:00","canJoin":false,"course":{"name":"Flow"},"store":{"name":"Downtown"}}]
		]}`)
	}))
	defer srv.Close()

	courses, err := New(srv.URL).FetchCourses(context.Background(), "S1", "2024-06-03")
	if err != nil {
		t.Fatalf("fetch courses: %v", err)
	}
	if len(courses) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(courses))
	}
	if courses[0].ID != "C1" || courses[0].Course.Name != "Yin Yoga" || !courses[0].CanJoin {
		t.Fatalf("unexpected first course: %+v", courses[0])
	}
	if courses[1].ID != "C2" || courses[1].CanJoin {
		t.Fatalf("unexpected second course: %+v", courses[1])
	}
}

func TestBookCourseForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user-course/yuyue" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("coursePlanId") != "C1" || r.PostForm.Get("userCardId") != "card-1" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		fmt.Fprint(w, `{"status":"OK","content":{"id":"book-9"}}`)
	}))
	defer srv.Close()

	result, err := New(srv.URL).BookCourse(context.Background(), "C1", "card-1")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if string(result) != `{"id":"book-9"}` {
		t.Fatalf("unexpected content: %s", result)
	}
}

func TestErrorStatusEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"FAIL","content":"card expired"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).BookCourse(context.Background(), "C1", "card-1")
	if err == nil {
		t.Fatal("expected error for non-OK status")
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).FetchStores(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 502")
	}
}

func TestCancelCourseForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user-course/cancel" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("id") != "book-9" || r.PostForm.Get("remark") != "1" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		fmt.Fprint(w, `{"status":"OK","content":null}`)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).CancelCourse(context.Background(), "book-9"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}
