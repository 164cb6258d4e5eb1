// Package notification は荷物イベントを受けて顧客・配達員へ通知を配信する。
//
// Pipeline がイベントをドキュメントストアの情報で補完し、宛先を決めて
// 通知履歴の保存とプッシュ通知の送信を行う。Server はHTTPリクエストを
// Pipeline の各操作に対応付け、エラーを404/500に変換する。
package notification
