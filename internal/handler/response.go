package handler

// Response is the HTTP envelope every handler returns.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Results *int        `json:"results,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// NewListResponse wraps a list payload with its element count.
func NewListResponse(data interface{}, count int) *Response {
	return &Response{
		Status:  "success",
		Data:    data,
		Results: &count,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}
