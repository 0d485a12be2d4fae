package server

import (
	"fmt"
	"net/http"
	"testing"

	"puzzlemarket/internal/models"
	"puzzlemarket/internal/service"
	"puzzlemarket/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func systemText(views []models.MessageView) string {
	for _, v := range views {
		if v.IsSystem {
			return v.Text
		}
	}
	return ""
}

func TestConversationLifecycle(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.player(t, "Alice")
	bob := ts.player(t, "Bob")
	listing := testutil.CreateListing(t, ts.db, bob.ID)

	start := request{
		method:   http.MethodPost,
		path:     "/api/conversations",
		playerID: alice.ID,
		body:     StartConversationRequest{RecipientID: bob.ID, ListingID: &listing.ID, Message: "Is it complete?"},
	}
	status, body := ts.do(t, start)
	require.Equal(t, http.StatusCreated, status, string(body))
	first := decode[service.StartResult](t, body)
	assert.True(t, first.Created)
	assert.Equal(t, models.ConversationStatusPending, first.Conversation.Status)
	convPath := fmt.Sprintf("/api/conversations/%d", first.Conversation.ID)

	t.Run("start is idempotent", func(t *testing.T) {
		status, body := ts.do(t, start)
		require.Equal(t, http.StatusOK, status)
		again := decode[service.StartResult](t, body)
		assert.False(t, again.Created)
		assert.Equal(t, first.Conversation.ID, again.Conversation.ID)
	})

	t.Run("pending request is listed for the recipient", func(t *testing.T) {
		status, body := ts.do(t, request{method: http.MethodGet, path: "/api/conversations?status=pending", playerID: bob.ID})
		require.Equal(t, http.StatusOK, status)
		summaries := decode[[]models.ConversationSummary](t, body)
		require.Len(t, summaries, 1)
		assert.Equal(t, "Alice", summaries[0].Counterpart.DisplayName)

		status, body = ts.do(t, request{method: http.MethodGet, path: "/api/conversations/badges", playerID: bob.ID})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), decode[map[string]float64](t, body)["pending_requests"])
	})

	t.Run("posting before acceptance conflicts", func(t *testing.T) {
		status, body := ts.do(t, request{method: http.MethodPost, path: convPath + "/messages", playerID: alice.ID,
			body: PostMessageRequest{Content: "hello?"}})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, models.CodeConversationNotAccepted, errorCode(t, body))
	})

	t.Run("initiator cannot respond", func(t *testing.T) {
		status, body := ts.do(t, request{method: http.MethodPost, path: convPath + "/respond", playerID: alice.ID,
			body: RespondRequest{Decision: "accept"}})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, models.CodeNotAuthorized, errorCode(t, body))
	})

	t.Run("recipient accepts", func(t *testing.T) {
		status, body := ts.do(t, request{method: http.MethodPost, path: convPath + "/respond", playerID: bob.ID,
			body: RespondRequest{Decision: "accept"}})
		require.Equal(t, http.StatusOK, status, string(body))
		assert.Equal(t, models.ConversationStatusAccepted, decode[models.Conversation](t, body).Status)

		status, _ = ts.do(t, request{method: http.MethodPost, path: convPath + "/respond", playerID: bob.ID,
			body: RespondRequest{Decision: "ignore"}})
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("messages flow and read state", func(t *testing.T) {
		status, body := ts.do(t, request{method: http.MethodPost, path: convPath + "/messages", playerID: alice.ID,
			body: PostMessageRequest{Content: "Great, when can we meet?"}})
		require.Equal(t, http.StatusCreated, status, string(body))

		status, body = ts.do(t, request{method: http.MethodGet, path: "/api/conversations/badges", playerID: bob.ID})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(2), decode[map[string]float64](t, body)["unread_messages"])

		status, body = ts.do(t, request{method: http.MethodPost, path: convPath + "/read", playerID: bob.ID})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(2), decode[map[string]float64](t, body)["marked_read"])

		status, body = ts.do(t, request{method: http.MethodGet, path: "/api/conversations/badges", playerID: bob.ID})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(0), decode[map[string]float64](t, body)["unread_messages"])
	})

	t.Run("system message rendered per viewer and locale", func(t *testing.T) {
		status, body := ts.do(t, request{method: http.MethodGet, path: convPath + "/messages", playerID: alice.ID})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Bob accepted your message request.", systemText(decode[[]models.MessageView](t, body)))

		status, body = ts.do(t, request{method: http.MethodGet, path: convPath + "/messages", playerID: bob.ID})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "You accepted the message request from Alice.", systemText(decode[[]models.MessageView](t, body)))

		status, body = ts.do(t, request{method: http.MethodGet, path: convPath + "/messages", playerID: alice.ID,
			headers: map[string]string{"Accept-Language": "cs-CZ,cs;q=0.9"}})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Bob přijal(a) vaši žádost o konverzaci.", systemText(decode[[]models.MessageView](t, body)))
	})

	t.Run("outsiders get 404", func(t *testing.T) {
		eve := ts.player(t, "Eve")
		status, body := ts.do(t, request{method: http.MethodGet, path: convPath, playerID: eve.ID})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, models.CodeNotFound, errorCode(t, body))
	})
}

func TestStartConversation_Rejections(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.player(t, "Alice")
	bob := ts.player(t, "Bob")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing recipient", StartConversationRequest{}, http.StatusBadRequest, models.CodeValidation},
		{"self", StartConversationRequest{RecipientID: alice.ID}, http.StatusBadRequest, models.CodeSelfConversation},
		{"unknown recipient", StartConversationRequest{RecipientID: 999999}, http.StatusNotFound, models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, request{method: http.MethodPost, path: "/api/conversations", playerID: alice.ID, body: tt.body})
			assert.Equal(t, tt.status, status, string(body))
			assert.Equal(t, tt.code, errorCode(t, body))
		})
	}

	t.Run("blocked either way", func(t *testing.T) {
		status, _ := ts.do(t, request{method: http.MethodPost, path: fmt.Sprintf("/api/blocks/%d", alice.ID), playerID: bob.ID})
		require.Equal(t, http.StatusOK, status)

		status, body := ts.do(t, request{method: http.MethodPost, path: "/api/conversations", playerID: alice.ID,
			body: StartConversationRequest{RecipientID: bob.ID}})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, models.CodeBlocked, errorCode(t, body))
	})

	t.Run("malformed body", func(t *testing.T) {
		status, _ := ts.do(t, request{method: http.MethodPost, path: "/api/conversations", playerID: alice.ID,
			body: "not an object"})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestBlockedConversationHiddenFromBlocker(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.player(t, "Alice")
	bob := ts.player(t, "Bob")

	status, body := ts.do(t, request{method: http.MethodPost, path: "/api/conversations", playerID: alice.ID,
		body: StartConversationRequest{RecipientID: bob.ID}})
	require.Equal(t, http.StatusCreated, status, string(body))
	convID := decode[service.StartResult](t, body).Conversation.ID

	status, _ = ts.do(t, request{method: http.MethodPost, path: fmt.Sprintf("/api/blocks/%d", bob.ID), playerID: alice.ID})
	require.Equal(t, http.StatusOK, status)

	status, body = ts.do(t, request{method: http.MethodGet, path: "/api/conversations", playerID: alice.ID})
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]models.ConversationSummary](t, body))

	status, _ = ts.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/api/conversations/%d", convID), playerID: alice.ID})
	assert.Equal(t, http.StatusNotFound, status)

	// Bob was blocked, not the blocker: the thread stays visible to him.
	status, body = ts.do(t, request{method: http.MethodGet, path: "/api/conversations", playerID: bob.ID})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.ConversationSummary](t, body), 1)

	status, body = ts.do(t, request{method: http.MethodGet, path: "/api/blocks", playerID: alice.ID})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.PlayerBlock](t, body), 1)

	status, _ = ts.do(t, request{method: http.MethodDelete, path: fmt.Sprintf("/api/blocks/%d", bob.ID), playerID: alice.ID})
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/api/conversations/%d", convID), playerID: alice.ID})
	assert.Equal(t, http.StatusOK, status)
}
