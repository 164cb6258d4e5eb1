package notification

import (
	"fmt"

	"github.com/nao1215/paqueteria/internal/directory"
	"github.com/nao1215/paqueteria/pkg/event"
)

// Entity は見つからなかったドキュメントの種類。値はエラーメッセージにそのまま使う。
type Entity string

const (
	// EntityCourier は配達員。
	EntityCourier Entity = "Repartidor"
	// EntityCustomer は顧客。
	EntityCustomer Entity = "Cliente"
	// EntityPackage は荷物。
	EntityPackage Entity = "Paquete"
)

// NotFoundError はイベントの補完や宛先解決に必要なドキュメントが存在しないことを表す。
// HTTPでは404として返す。
type NotFoundError struct {
	Entity Entity
	ID     string
}

// Error はクライアントに返すメッセージを返す。
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s no encontrado con ID: %s", e.Entity, e.ID)
}

// Unwrap は directory.ErrNotFound を返す。
func (e *NotFoundError) Unwrap() error {
	return directory.ErrNotFound
}

// ProcessingError はNotFound以外の理由で通知処理が失敗したことを表す。
// HTTPでは500として返す。
type ProcessingError struct {
	Action event.Action
	Err    error
}

// Error はクライアントに返すメッセージを返す。原因はログにのみ出力する。
func (e *ProcessingError) Error() string {
	return "Error interno al procesar notificación de " + e.Action.Description()
}

// Unwrap は原因のエラーを返す。
func (e *ProcessingError) Unwrap() error {
	return e.Err
}
