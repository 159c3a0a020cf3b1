package response

// Response 统一的接口返回结构
type Response struct {
	Data any    `json:"data,omitempty"`
	Msg  string `json:"msg,omitempty"`
}
