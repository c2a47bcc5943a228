// Package middleware 提供 HTTP 請求處理的中間件。
//
// 包含 JWT 身分驗證、固定窗口限流（redis 或記憶體）以及請求日誌與延遲指標。
package middleware
