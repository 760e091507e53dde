package model

import "net/http"

const messageOK = "操作成功"

// Response 统一的API响应，错误时 Data 为空
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SuccessResponse 200 响应
func SuccessResponse(data interface{}) Response {
	return Response{Code: http.StatusOK, Message: messageOK, Data: data}
}

// ErrorResponse code 为0时按500处理
func ErrorResponse(code int, message string) Response {
	if code == 0 {
		code = http.StatusInternalServerError
	}
	return Response{Code: code, Message: message}
}

// Page 分页数据，作为 Response.Data 返回
type Page struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
}

// PagedResponse 包装一页数据
func PagedResponse(items interface{}, total int64, page, pageSize int) Response {
	p := Page{Items: items, Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		p.Pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return SuccessResponse(p)
}
