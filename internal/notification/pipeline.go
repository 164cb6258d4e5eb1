package notification

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/paqueteria/internal/directory"
	"github.com/nao1215/paqueteria/internal/metrics"
	"github.com/nao1215/paqueteria/internal/push"
	"github.com/nao1215/paqueteria/pkg/event"
)

// 通知の文面。
const (
	titlePickedUp  = "🚚 Paquete en camino"
	titleNew       = "📦 Nuevo paquete disponible"
	titleDelivered = "✅ Paquete entregado"

	bodyPickedUpFormat = "%s tomó tu paquete y está en camino"
	bodyNewFormat      = "Paquete para %s - %s"
	bodyDelivered      = "Tu paquete ha sido entregado exitosamente"
)

// defaultConcurrency は配達員への一斉通知のデフォルト同時実行数。
const defaultConcurrency = 8

// Recorder は通知履歴の追記先。書き込めたかどうかだけを返す。
type Recorder interface {
	Append(ctx context.Context, userID, title, body string, kind event.Kind, data map[string]string) bool
}

// Sink はプッシュ通知の送信先。送信失敗はエラーとして返さない。
type Sink interface {
	SendSingle(ctx context.Context, token string, msg push.Message) push.Outcome
	SendMulticast(ctx context.Context, tokens []string, msg push.Message) push.BatchResult
}

// Pipeline は荷物イベントを補完し、宛先ごとに通知履歴の保存とプッシュ送信を行う。
type Pipeline struct {
	directory   directory.Lookup
	recorder    Recorder
	sink        Sink
	logger      *zap.Logger
	concurrency int
	multicast   bool
}

// Option はPipelineの設定を変更する。
type Option func(*Pipeline)

// WithConcurrency は配達員への一斉通知の同時実行数を設定する。1未満は無視する。
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n >= 1 {
			p.concurrency = n
		}
	}
}

// WithMulticast は新規荷物通知をマルチキャスト1回で送信するかどうかを設定する。
func WithMulticast(enabled bool) Option {
	return func(p *Pipeline) {
		p.multicast = enabled
	}
}

// NewPipeline は新しいPipelineを生成する。
func NewPipeline(lookup directory.Lookup, recorder Recorder, sink Sink, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		directory:   lookup,
		recorder:    recorder,
		sink:        sink,
		logger:      logger,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NotifyPackagePickedUp は配達員が荷物を引き取ったことを顧客へ通知する。
// 配達員名と顧客IDが未指定の場合はドキュメントストアから補完する。
func (p *Pipeline) NotifyPackagePickedUp(ctx context.Context, ev *event.PackageEvent) (err error) {
	const action = event.ActionPickedUp
	defer func() { p.observe(action, ev, err) }()

	if ev.CourierName == "" {
		courier, err := p.directory.GetUser(ctx, ev.CourierID)
		if err != nil {
			return lookupError(action, EntityCourier, ev.CourierID, err)
		}
		ev.CourierName = courier.Name
	}

	customer, err := p.resolveCustomer(ctx, action, ev)
	if err != nil {
		return err
	}

	payload := event.AssignmentPayload{
		PackageID: ev.PackageID,
		CourierID: ev.CourierID,
		UserID:    customer.ID,
	}
	body := fmt.Sprintf(bodyPickedUpFormat, ev.CourierName)
	p.notifyUser(context.WithoutCancel(ctx), customer, titlePickedUp, body, payload)
	return nil
}

// NotifyNewPackage は新しい荷物をトークン登録済みの全配達員へ通知する。
// 配達員が1人もいない場合は何もせず成功とする。
func (p *Pipeline) NotifyNewPackage(ctx context.Context, ev *event.PackageEvent) (err error) {
	const action = event.ActionCreated
	defer func() { p.observe(action, ev, err) }()

	if ev.RecipientName == "" || ev.Address == "" {
		pkg, err := p.directory.GetPackage(ctx, ev.PackageID)
		if err != nil {
			return lookupError(action, EntityPackage, ev.PackageID, err)
		}
		ev.RecipientName = pkg.RecipientName
		ev.Address = pkg.Address
	}

	couriers, err := p.directory.ListCouriersWithDeliveryToken(ctx)
	if err != nil {
		return &ProcessingError{Action: action, Err: err}
	}
	metrics.FanoutRecipients.Observe(float64(len(couriers)))

	if len(couriers) == 0 {
		p.logger.Info("通知対象の配達員がいません", zap.String("package_id", ev.PackageID))
		return nil
	}

	dispatchCtx := context.WithoutCancel(ctx)
	var report *fanoutReport
	if p.multicast {
		report = p.multicastNewPackage(dispatchCtx, ev, couriers)
	} else {
		report = p.fanOutNewPackage(dispatchCtx, ev, couriers)
	}
	p.logger.Info("新規荷物の通知を配信しました",
		zap.String("package_id", ev.PackageID),
		zap.Int("recipients", len(couriers)),
		zap.Int64("recorded", report.recorded.Load()),
		zap.Int64("delivered", report.delivered.Load()),
		zap.Int64("unregistered", report.unregistered.Load()),
		zap.Int64("failed", report.failed.Load()),
	)
	return nil
}

// NotifyPackageDelivered は荷物の配達完了を顧客へ通知する。
func (p *Pipeline) NotifyPackageDelivered(ctx context.Context, ev *event.PackageEvent) (err error) {
	const action = event.ActionDelivered
	defer func() { p.observe(action, ev, err) }()

	customer, err := p.resolveCustomer(ctx, action, ev)
	if err != nil {
		return err
	}

	payload := event.DeliveryPayload{
		PackageID: ev.PackageID,
		UserID:    customer.ID,
	}
	p.notifyUser(context.WithoutCancel(ctx), customer, titleDelivered, bodyDelivered, payload)
	return nil
}

// resolveCustomer は顧客IDを（未指定なら荷物から）補完し、顧客を取得する。
func (p *Pipeline) resolveCustomer(ctx context.Context, action event.Action, ev *event.PackageEvent) (*directory.User, error) {
	if ev.CustomerID == "" {
		pkg, err := p.directory.GetPackage(ctx, ev.PackageID)
		if err != nil {
			return nil, lookupError(action, EntityPackage, ev.PackageID, err)
		}
		ev.CustomerID = pkg.CustomerID
	}

	customer, err := p.directory.GetUser(ctx, ev.CustomerID)
	if err != nil {
		return nil, lookupError(action, EntityCustomer, ev.CustomerID, err)
	}
	if customer.ID == "" {
		customer.ID = ev.CustomerID
	}
	return customer, nil
}

// notifyUser は1人のユーザーへ履歴を保存し、トークンがあればプッシュ送信する。
func (p *Pipeline) notifyUser(ctx context.Context, user *directory.User, title, body string, payload event.Payload) {
	data := payload.Data()
	p.recorder.Append(ctx, user.ID, title, body, payload.Kind(), data)

	if user.DeliveryToken == "" {
		p.logger.Info("配送トークンが未登録のため履歴のみ保存しました",
			zap.String("user_id", user.ID),
			zap.String("kind", string(payload.Kind())),
		)
		return
	}
	p.sink.SendSingle(ctx, user.DeliveryToken, push.Message{Title: title, Body: body, Data: data})
}

// fanoutReport は新規荷物通知の集計。複数のgoroutineから更新される。
type fanoutReport struct {
	recorded     atomic.Int64
	delivered    atomic.Int64
	unregistered atomic.Int64
	failed       atomic.Int64
}

func (r *fanoutReport) add(outcome push.Outcome) {
	switch outcome {
	case push.OutcomeDelivered:
		r.delivered.Add(1)
	case push.OutcomeUnregistered:
		r.unregistered.Add(1)
	default:
		r.failed.Add(1)
	}
}

// fanOutNewPackage は配達員ごとに履歴保存と個別送信を並行して行う。
// 1人の配達員の処理がパニックしても他の配達員の処理は続行する。
func (p *Pipeline) fanOutNewPackage(ctx context.Context, ev *event.PackageEvent, couriers map[string]string) *fanoutReport {
	report := &fanoutReport{}
	body := fmt.Sprintf(bodyNewFormat, ev.RecipientName, ev.Address)

	p.forEachCourier(couriers, func(courierID, token string) {
		payload := newPackagePayload(ev, courierID)
		data := payload.Data()
		if p.recorder.Append(ctx, courierID, titleNew, body, payload.Kind(), data) {
			report.recorded.Add(1)
		}
		report.add(p.sink.SendSingle(ctx, token, push.Message{Title: titleNew, Body: body, Data: data}))
	}, report)
	return report
}

// multicastNewPackage は配達員ごとに履歴を保存したあと、userIdを含まない共通ペイロードで
// 全トークンへ1回のマルチキャスト送信を行う。
func (p *Pipeline) multicastNewPackage(ctx context.Context, ev *event.PackageEvent, couriers map[string]string) *fanoutReport {
	report := &fanoutReport{}
	body := fmt.Sprintf(bodyNewFormat, ev.RecipientName, ev.Address)

	p.forEachCourier(couriers, func(courierID, _ string) {
		payload := newPackagePayload(ev, courierID)
		if p.recorder.Append(ctx, courierID, titleNew, body, payload.Kind(), payload.Data()) {
			report.recorded.Add(1)
		}
	}, report)

	ids := slices.Sorted(maps.Keys(couriers))
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		tokens = append(tokens, couriers[id])
	}
	shared := newPackagePayload(ev, "")
	result := p.sink.SendMulticast(ctx, tokens, push.Message{Title: titleNew, Body: body, Data: shared.Data()})

	report.delivered.Add(int64(result.Success))
	report.unregistered.Add(int64(len(result.Unregistered)))
	report.failed.Add(int64(result.Failure - len(result.Unregistered)))
	return report
}

// forEachCourier は配達員ID順にfnを最大concurrency並列で実行する。
// fnのパニックは回復して失敗として数える。
func (p *Pipeline) forEachCourier(couriers map[string]string, fn func(courierID, token string), report *fanoutReport) {
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for _, id := range slices.Sorted(maps.Keys(couriers)) {
		token := couriers[id]
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					report.failed.Add(1)
					p.logger.Error("配達員への通知中にパニックが発生",
						zap.String("courier_id", id),
						zap.Any("panic", r),
					)
				}
			}()
			fn(id, token)
			return nil
		})
	}
	_ = g.Wait()
}

func newPackagePayload(ev *event.PackageEvent, courierID string) event.NewPackagePayload {
	return event.NewPackagePayload{
		PackageID:     ev.PackageID,
		RecipientName: ev.RecipientName,
		Address:       ev.Address,
		UserID:        courierID,
	}
}

// lookupError は参照エラーを、存在しない場合は NotFoundError に、
// それ以外は ProcessingError に変換する。
func lookupError(action event.Action, entity Entity, id string, err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return &ProcessingError{Action: action, Err: err}
}

// observe は処理結果をログとメトリクスに記録する。
func (p *Pipeline) observe(action event.Action, ev *event.PackageEvent, err error) {
	var (
		notFound   *NotFoundError
		processing *ProcessingError
	)
	switch {
	case err == nil:
		metrics.NotificationRequestsTotal.WithLabelValues(string(action), "ok").Inc()
	case errors.As(err, &notFound):
		metrics.NotificationRequestsTotal.WithLabelValues(string(action), "not_found").Inc()
		p.logger.Warn("通知先の解決に失敗",
			zap.String("action", string(action)),
			zap.String("package_id", ev.PackageID),
			zap.Error(err),
		)
	case errors.As(err, &processing):
		metrics.NotificationRequestsTotal.WithLabelValues(string(action), "error").Inc()
		p.logger.Error("通知処理に失敗",
			zap.String("action", string(action)),
			zap.String("package_id", ev.PackageID),
			zap.NamedError("cause", processing.Err),
		)
	default:
		metrics.NotificationRequestsTotal.WithLabelValues(string(action), "error").Inc()
		p.logger.Error("通知処理に失敗",
			zap.String("action", string(action)),
			zap.String("package_id", ev.PackageID),
			zap.Error(err),
		)
	}
}
