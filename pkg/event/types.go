// Package event は配送プラットフォームから受信する荷物イベントと、
// 通知に添付するペイロードの型を定義する。
package event

import (
	"fmt"
	"strings"
)

// Action は荷物イベントの種類を表す。値は配送アプリが送信する文字列と一致させる。
type Action string

const (
	// ActionCreated は荷物が登録されたことを表す。
	ActionCreated Action = "CREADO"
	// ActionPickedUp は配達員が荷物を引き取ったことを表す。
	ActionPickedUp Action = "TOMADO"
	// ActionDelivered は荷物が配達完了したことを表す。
	ActionDelivered Action = "ENTREGADO"
)

// actions は受け付け可能なActionの一覧。
var actions = []Action{ActionCreated, ActionPickedUp, ActionDelivered}

// ParseAction は文字列をActionに変換する。前後の空白と大文字小文字は無視する。
func ParseAction(s string) (Action, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, a := range actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("不明なアクション: %q", s)
}

// Description はログやエラーメッセージに使うActionの説明を返す。
func (a Action) Description() string {
	switch a {
	case ActionCreated:
		return "nuevo pedido"
	case ActionPickedUp:
		return "pedido tomado"
	case ActionDelivered:
		return "pedido entregado"
	default:
		return string(a)
	}
}

// Kind は通知履歴とペイロードに記録される通知の種類を表す。
type Kind string

const (
	// KindAssignment は荷物に配達員が割り当てられた通知。
	KindAssignment Kind = "asignacion"
	// KindPackage は配達員向けの新規荷物通知。
	KindPackage Kind = "paquete"
	// KindDelivery は配達完了通知。
	KindDelivery Kind = "entrega"
)

// PackageEvent は通知のきっかけとなる荷物イベント。
// リクエストごとに生成され、エンリッチ処理の中で不足フィールドが埋められる。
// 空文字列のフィールドは「未指定」として扱う。
type PackageEvent struct {
	// PackageID は荷物の識別子。必須。
	PackageID string `json:"paqueteId" binding:"required"`
	// CustomerID は荷物を依頼した顧客のID。未指定なら荷物から補完する。
	CustomerID string `json:"clienteId,omitempty"`
	// CourierID は配達員のID。
	CourierID string `json:"repartidorId,omitempty"`
	// CourierName は配達員の表示名。未指定なら配達員から補完する。
	CourierName string `json:"repartidorNombre,omitempty"`
	// RecipientName は荷物の受取人名。
	RecipientName string `json:"destinatario,omitempty"`
	// Address は配達先住所。
	Address string `json:"direccion,omitempty"`
	// Status は荷物の状態。
	Status string `json:"estado,omitempty"`
	// Action はイベントの種類。
	Action Action `json:"accion,omitempty"`
}
