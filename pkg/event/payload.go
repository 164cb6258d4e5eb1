package event

// Payload キー。プッシュ通知のdataと通知履歴のdataで共通。
const (
	keyKind          = "tipo"
	keyPackageID     = "paqueteId"
	keyCourierID     = "repartidorId"
	keyRecipientName = "destinatario"
	keyAddress       = "direccion"
	keyUserID        = "userId"
)

// Payload は通知の種類ごとに決まったキーだけを持つ構造化ペイロード。
// Data はワイヤ形式（文字列から文字列へのマップ）を返す。
type Payload interface {
	Kind() Kind
	Data() map[string]string
}

// AssignmentPayload は荷物引き取り時に顧客へ送るペイロード。
type AssignmentPayload struct {
	PackageID string
	CourierID string
	// UserID は通知先の顧客ID。
	UserID string
}

// Kind は KindAssignment を返す。
func (p AssignmentPayload) Kind() Kind { return KindAssignment }

// Data はワイヤ形式のマップを返す。
func (p AssignmentPayload) Data() map[string]string {
	return map[string]string{
		keyKind:      string(KindAssignment),
		keyPackageID: p.PackageID,
		keyCourierID: p.CourierID,
		keyUserID:    p.UserID,
	}
}

// NewPackagePayload は新規荷物を配達員へ知らせるペイロード。
type NewPackagePayload struct {
	PackageID     string
	RecipientName string
	Address       string
	// UserID は通知先の配達員ID。マルチキャスト送信では空になり、キー自体を省く。
	UserID string
}

// Kind は KindPackage を返す。
func (p NewPackagePayload) Kind() Kind { return KindPackage }

// Data はワイヤ形式のマップを返す。
func (p NewPackagePayload) Data() map[string]string {
	data := map[string]string{
		keyKind:          string(KindPackage),
		keyPackageID:     p.PackageID,
		keyRecipientName: p.RecipientName,
		keyAddress:       p.Address,
	}
	if p.UserID != "" {
		data[keyUserID] = p.UserID
	}
	return data
}

// DeliveryPayload は配達完了を顧客へ知らせるペイロード。
type DeliveryPayload struct {
	PackageID string
	UserID    string
}

// Kind は KindDelivery を返す。
func (p DeliveryPayload) Kind() Kind { return KindDelivery }

// Data はワイヤ形式のマップを返す。
func (p DeliveryPayload) Data() map[string]string {
	return map[string]string{
		keyKind:      string(KindDelivery),
		keyPackageID: p.PackageID,
		keyUserID:    p.UserID,
	}
}
