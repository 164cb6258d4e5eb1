// Package directory はユーザーと荷物の参照を抽象化する。
// 実体はドキュメントストア（sqliteまたはFirestore）で、通知処理は読み取りだけを行う。
package directory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound は対象のドキュメントが存在しないことを表す。
// 接続エラー等の取得失敗とは区別され、呼び出し側は errors.Is で判定する。
var ErrNotFound = errors.New("ドキュメントが存在しません")

// ロール。
const (
	RoleCustomer = "cliente"
	RoleCourier  = "repartidor"
)

// User は usuarios コレクションのドキュメント。
type User struct {
	ID    string `firestore:"id"`
	Name  string `firestore:"nombre"`
	Email string `firestore:"email"`
	Role  string `firestore:"rol"`
	// DeliveryToken はプッシュ通知の宛先トークン。空なら履歴のみ保存する。
	DeliveryToken string `firestore:"fcmToken"`
	// AuthToken はアプリのセッショントークン。通知処理では使わない。
	AuthToken        string     `firestore:"token"`
	TokenLastUpdated *time.Time `firestore:"ultimaActualizacionToken"`
}

// Package は paquetes コレクションのドキュメント。
type Package struct {
	ID            string `firestore:"id"`
	CustomerID    string `firestore:"clienteId"`
	RecipientName string `firestore:"destinatario"`
	Address       string `firestore:"direccion"`
	Status        string `firestore:"estado"`
}

// Lookup はユーザーと荷物の読み取り操作。
type Lookup interface {
	// GetUser はIDでユーザーを取得する。存在しない場合は ErrNotFound を返す。
	GetUser(ctx context.Context, id string) (*User, error)
	// GetPackage はIDで荷物を取得する。存在しない場合は ErrNotFound を返す。
	GetPackage(ctx context.Context, id string) (*Package, error)
	// ListCouriersWithDeliveryToken は配送トークンを持つ配達員のIDからトークンへのマップを返す。
	// トークンが空の配達員は含まない。
	ListCouriersWithDeliveryToken(ctx context.Context) (map[string]string, error)
}
