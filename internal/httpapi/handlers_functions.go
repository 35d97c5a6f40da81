package httpapi

import (
	"context"
	"net/http"

	"hangoutsync/internal/functions"
)

// callable adapts a service method to the {"data"} / {"result"} envelope.
func callable[Req, Resp any](fn func(ctx context.Context, caller string, req Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, _ := CurrentUID(r.Context())
		var in functions.Call[Req]
		if err := decodeCall(w, r, &in); err != nil {
			WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
			return
		}
		out, err := fn(r.Context(), uid, in.Data)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, functions.Result[Resp]{Result: out})
	}
}

func (a *api) functionHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		functions.SendFriendRequest: callable(func(ctx context.Context, uid string, req functions.SendFriendRequestRequest) (functions.SendFriendRequestResponse, error) {
			id, err := a.friends.SendRequest(ctx, uid, req)
			return functions.SendFriendRequestResponse{NotificationID: id}, err
		}),
		functions.UnsendFriendRequest: callable(func(ctx context.Context, uid string, req functions.UnsendFriendRequestRequest) (functions.SuccessResponse, error) {
			err := a.friends.UnsendRequest(ctx, uid, req)
			return functions.SuccessResponse{Success: err == nil}, err
		}),
		functions.RespondToFriendRequest: callable(func(ctx context.Context, uid string, req functions.RespondToFriendRequestRequest) (functions.SuccessResponse, error) {
			err := a.friends.Respond(ctx, uid, req)
			return functions.SuccessResponse{Success: err == nil}, err
		}),
		functions.UpdateNotificationStatus: callable(func(ctx context.Context, uid string, req functions.UpdateNotificationStatusRequest) (functions.SuccessResponse, error) {
			err := a.notifications.UpdateStatus(ctx, uid, req)
			return functions.SuccessResponse{Success: err == nil}, err
		}),
		functions.CreateHangout: callable(func(ctx context.Context, uid string, req functions.CreateHangoutRequest) (functions.CreateHangoutResponse, error) {
			id, err := a.hangouts.Create(ctx, uid, req)
			return functions.CreateHangoutResponse{HangoutID: id}, err
		}),
		functions.GetSearchServiceAPIKey: callable(func(ctx context.Context, uid string, _ functions.SearchServiceAPIKeyRequest) (functions.SearchServiceAPIKeyResponse, error) {
			key, err := a.secrets.SearchAPIKey(ctx, uid)
			return functions.SearchServiceAPIKeyResponse{APIKey: key}, err
		}),
	}
}

func (a *api) handleFunction(w http.ResponseWriter, r *http.Request) {
	h, ok := a.callables[r.PathValue("name")]
	if !ok {
		WriteError(w, http.StatusNotFound, "not_found", "unknown function")
		return
	}
	h(w, r)
}
