// Package api 處理 HTTP 請求路由。
//
// handlers 子套件把 HTTP 與 WebSocket 請求轉成服務調用，並把服務層錯誤轉回對應的狀態碼。
package api
