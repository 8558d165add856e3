package handler

// Response is the success envelope for scheduling endpoints. Domain errors
// never pass through here: they flow to the error middleware, which renders
// its own envelope carrying the error code and any booking conflicts.
// NewErrorResponse covers request parsing failures that never reach a
// service.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// NewListResponse wraps a collection together with its length.
func NewListResponse(data interface{}, count int) *Response {
	return &Response{
		Status: "success",
		Data:   data,
		Count:  &count,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}
