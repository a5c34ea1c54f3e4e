// Response helpers:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, record)
//	httputil.WriteErrorMessage(w, http.StatusBadRequest, "title is required")
//
// Errors use the backend's shape:
//
//	{"statusCode": 400, "message": "title is required"}
//
// Request parsing:
//
//	var body map[string]interface{}
//	if !httputil.ParseJSONOrError(w, r, &body) {
//		return
//	}
//	id, err := httputil.ParsePathString(r, "id")
//	token := httputil.BearerToken(r)
//
// Middleware:
//
//	rec := &httputil.Recorder{}
//	handler := httputil.Chain(
//		httputil.RecoveryMiddleware(logrus.New()),
//		rec.Middleware,
//	)(router)
package httputil
