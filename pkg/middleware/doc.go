// Package middleware は通知サービスのHTTP APIで使用するGinミドルウェアを提供する。
//
// 通知履歴APIのJWT認証、リクエストIDとアクセスログ、パニックリカバリ、
// CORS設定を含む。エラーレスポンスは {success:false, mensaje} 形式で返す。
package middleware
