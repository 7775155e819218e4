package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"feedpulse/internal/models"
	"feedpulse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPostAPI is a mock of the PostAPI interface
type MockPostAPI struct {
	mock.Mock
}

func (m *MockPostAPI) CreatePost(ctx context.Context, in service.CreatePostInput) (*models.PostWithStats, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostWithStats), args.Error(1)
}

func (m *MockPostAPI) GetPost(ctx context.Context, postID, userID uint) (*models.PostWithStats, error) {
	args := m.Called(ctx, postID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostWithStats), args.Error(1)
}

func (m *MockPostAPI) ListPosts(ctx context.Context, in service.ListPostsInput) (*service.PostPage, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PostPage), args.Error(1)
}

func (m *MockPostAPI) UpdatePost(ctx context.Context, in service.UpdatePostInput) (*models.Post, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostAPI) DeletePost(ctx context.Context, in service.DeletePostInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

// newPostApp mounts the post handlers with the caller fixed to userID (0 = anonymous).
func newPostApp(posts PostAPI, userID uint) *fiber.App {
	app := fiber.New()
	s := &Server{posts: posts}

	app.Use(func(c *fiber.Ctx) error {
		if userID != 0 {
			c.Locals("userID", userID)
		}
		return c.Next()
	})
	app.Get("/posts", s.GetPosts)
	app.Get("/posts/from-user/:userId", s.GetUserPosts)
	app.Get("/posts/:id", s.GetPost)
	app.Post("/posts", s.CreatePost)
	app.Patch("/posts/:id", s.UpdatePost)
	app.Delete("/posts/:id", s.DeletePost)
	return app
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, resp *http.Response) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCreatePost(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(m *MockPostAPI)
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{"content": "Hello world"},
			mockSetup: func(m *MockPostAPI) {
				m.On("CreatePost", mock.Anything, service.CreatePostInput{AuthorID: 1, Content: "Hello world"}).
					Return(&models.PostWithStats{Post: models.Post{ID: 1, AuthorID: 1, Content: "Hello world"}}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Missing Content",
			body:           map[string]string{},
			mockSetup:      func(m *MockPostAPI) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Content Too Long",
			body:           map[string]string{"content": strings.Repeat("x", 5001)},
			mockSetup:      func(m *MockPostAPI) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Blank Content Rejected By Service",
			body: map[string]string{"content": "   "},
			mockSetup: func(m *MockPostAPI) {
				m.On("CreatePost", mock.Anything, mock.Anything).
					Return(nil, models.NewValidationError("Content is required"))
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockPostAPI)
			tt.mockSetup(m)
			app := newPostApp(m, 1)

			resp, err := app.Test(jsonRequest(http.MethodPost, "/posts", tt.body))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			m.AssertExpectations(t)
		})
	}
}

func TestGetPost(t *testing.T) {
	m := new(MockPostAPI)
	m.On("GetPost", mock.Anything, uint(5), uint(9)).Return(&models.PostWithStats{
		Post:      models.Post{ID: 5, AuthorID: 2, Content: "hi", ViewsBaseline: 10},
		PostStats: models.PostStats{Likes: 3, Dislikes: 1, Views: 12},
	}, nil)
	m.On("GetPost", mock.Anything, uint(6), uint(9)).Return(nil, models.NewNotFoundError("Post", 6))
	app := newPostApp(m, 9)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts/5", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(3), body["likes"])
	assert.Equal(t, float64(1), body["dislikes"])
	assert.Equal(t, float64(12), body["views"])
	assert.Equal(t, "hi", body["content"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/posts/6", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, decodeError(t, resp).Code)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/posts/abc", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPosts(t *testing.T) {
	next := uint(40)
	m := new(MockPostAPI)
	m.On("ListPosts", mock.Anything, service.ListPostsInput{Take: 2, Cursor: 50, ViewerID: 0}).
		Return(&service.PostPage{Results: []models.PostWithStats{{Post: models.Post{ID: 45}}}, NextCursor: &next}, nil)
	m.On("ListPosts", mock.Anything, service.ListPostsInput{Take: service.DefaultPageSize, AuthorID: 3}).
		Return(&service.PostPage{Results: []models.PostWithStats{}}, nil)
	app := newPostApp(m, 0)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts?take=2&cursor=50", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Results    []map[string]interface{} `json:"results"`
		NextCursor *uint                    `json:"next_cursor"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Results, 1)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, uint(40), *page.NextCursor)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/posts/from-user/3", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, bad := range []string{"/posts?take=0", "/posts?take=101", "/posts?take=abc", "/posts?cursor=-1"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, bad, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
		_ = resp.Body.Close()
	}
	m.AssertExpectations(t)
}

func TestUpdatePost(t *testing.T) {
	m := new(MockPostAPI)
	m.On("UpdatePost", mock.Anything, service.UpdatePostInput{AuthorID: 1, PostID: 7, Content: "edited"}).
		Return(&models.Post{ID: 7, Content: "edited"}, nil)
	m.On("UpdatePost", mock.Anything, service.UpdatePostInput{AuthorID: 1, PostID: 8, Content: "edited"}).
		Return(nil, models.NewNotFoundError("Post", 8))
	app := newPostApp(m, 1)

	resp, err := app.Test(jsonRequest(http.MethodPatch, "/posts/7", map[string]string{"content": "edited"}))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(jsonRequest(http.MethodPatch, "/posts/8", map[string]string{"content": "edited"}))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeletePost(t *testing.T) {
	m := new(MockPostAPI)
	m.On("DeletePost", mock.Anything, service.DeletePostInput{AuthorID: 1, PostID: 7}).Return(nil)
	app := newPostApp(m, 1)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/posts/7", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	m.AssertExpectations(t)
}
