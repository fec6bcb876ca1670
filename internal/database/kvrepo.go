package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"budget-tracker-backend/internal/dateparse"
	"budget-tracker-backend/internal/kv"
	"budget-tracker-backend/internal/models"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// KVRepository stores every entity as a hash and maintains its secondary
// indexes as sets and sorted sets:
//
//	{prefix}project:{id}                              hash
//	{prefix}projects:by_created_at                    zset, score = created epoch
//	{prefix}category:{id}                             hash
//	{prefix}project:{id}:categories[:{type}]          set
//	{prefix}transaction:{id}                          hash
//	{prefix}project:{id}:transactions:all             set
//	{prefix}project:{id}:transactions:by_date         zset, score = date epoch
//	{prefix}project:{id}:transactions:month:{MM/YYYY} set
//
// Multi-key mutations are not atomic. A failure half way through a delete
// can leave orphaned child records or stale index entries.
type KVRepository struct {
	store  kv.Store
	prefix string
	now    func() time.Time
}

func NewKVRepository(store kv.Store, prefix string) *KVRepository {
	return &KVRepository{store: store, prefix: prefix, now: time.Now}
}

func (r *KVRepository) k(format string, args ...any) string {
	return r.prefix + fmt.Sprintf(format, args...)
}

func (r *KVRepository) projectKey(id int64) string     { return r.k("project:%d", id) }
func (r *KVRepository) categoryKey(id int64) string    { return r.k("category:%d", id) }
func (r *KVRepository) transactionKey(id int64) string { return r.k("transaction:%d", id) }
func (r *KVRepository) projectsIndex() string          { return r.k("projects:by_created_at") }

func (r *KVRepository) categoriesIndex(projectID int64, t models.TxType) string {
	if t == "" {
		return r.k("project:%d:categories", projectID)
	}
	return r.k("project:%d:categories:%s", projectID, t)
}

func (r *KVRepository) txAllIndex(projectID int64) string {
	return r.k("project:%d:transactions:all", projectID)
}

func (r *KVRepository) txDateIndex(projectID int64) string {
	return r.k("project:%d:transactions:by_date", projectID)
}

func (r *KVRepository) txMonthIndex(projectID int64, month string) string {
	return r.k("project:%d:transactions:month:%s", projectID, month)
}

func (r *KVRepository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// ---------- projects ----------

func (r *KVRepository) CreateProject(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, models.Invalidf("project name is required")
	}

	id, err := r.store.Incr(ctx, r.k("project:next_id"))
	if err != nil {
		return 0, fmt.Errorf("allocate project id: %w", err)
	}
	now := r.now().UTC()
	ts := now.Format(timestampLayout)

	if err := r.store.HSet(ctx, r.projectKey(id), map[string]string{
		"id":         strconv.FormatInt(id, 10),
		"name":       name,
		"created_at": ts,
		"updated_at": ts,
	}); err != nil {
		return 0, fmt.Errorf("write project %d: %w", id, err)
	}
	if err := r.store.ZAdd(ctx, r.projectsIndex(), strconv.FormatInt(id, 10), float64(now.Unix())); err != nil {
		return 0, fmt.Errorf("index project %d: %w", id, err)
	}
	return id, nil
}

func (r *KVRepository) ListProjects(ctx context.Context) ([]models.Project, error) {
	ids, err := r.store.ZRevRange(ctx, r.projectsIndex())
	if err != nil {
		return nil, fmt.Errorf("list project ids: %w", err)
	}

	projects := make([]models.Project, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		p, err := r.loadProject(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			projects = append(projects, *p)
		}
	}
	return projects, nil
}

func (r *KVRepository) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	p, err := r.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (r *KVRepository) loadProject(ctx context.Context, id int64) (*models.Project, error) {
	h, err := r.store.HGetAll(ctx, r.projectKey(id))
	if err != nil {
		return nil, fmt.Errorf("read project %d: %w", id, err)
	}
	if len(h) == 0 {
		return nil, nil
	}
	return &models.Project{
		ID:        parseID(h["id"], id),
		Name:      h["name"],
		CreatedAt: h["created_at"],
		UpdatedAt: h["updated_at"],
	}, nil
}

func (r *KVRepository) requireProject(ctx context.Context, id int64) error {
	ok, err := r.store.Exists(ctx, r.projectKey(id))
	if err != nil {
		return fmt.Errorf("check project %d: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *KVRepository) DeleteProject(ctx context.Context, id int64) error {
	if err := r.requireProject(ctx, id); err != nil {
		return err
	}

	catIDs, err := r.store.SMembers(ctx, r.categoriesIndex(id, ""))
	if err != nil {
		return fmt.Errorf("list categories of project %d: %w", id, err)
	}
	for _, raw := range catIDs {
		cid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if err := r.DeleteCategory(ctx, cid); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	txIDs, err := r.store.SMembers(ctx, r.txAllIndex(id))
	if err != nil {
		return fmt.Errorf("list transactions of project %d: %w", id, err)
	}
	for _, raw := range txIDs {
		tid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if err := r.DeleteTransaction(ctx, tid); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	// Month buckets empty out as their transactions are deleted.
	keys := []string{
		r.categoriesIndex(id, ""),
		r.txAllIndex(id),
		r.txDateIndex(id),
	}
	for _, t := range models.TxTypes {
		keys = append(keys, r.categoriesIndex(id, t))
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("drop indexes of project %d: %w", id, err)
	}

	if err := r.store.ZRem(ctx, r.projectsIndex(), strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("unindex project %d: %w", id, err)
	}
	if err := r.store.Del(ctx, r.projectKey(id)); err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	slog.InfoContext(ctx, "project deleted", "project_id", id, "categories", len(catIDs), "transactions", len(txIDs))
	return nil
}

// ---------- categories ----------

func (r *KVRepository) AddCategory(ctx context.Context, projectID int64, name string, t models.TxType) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, models.Invalidf("category name is required")
	}
	if !t.Valid() {
		return 0, models.Invalidf("invalid category type %q", t)
	}
	if err := r.requireProject(ctx, projectID); err != nil {
		return 0, err
	}

	id, err := r.store.Incr(ctx, r.k("category:next_id"))
	if err != nil {
		return 0, fmt.Errorf("allocate category id: %w", err)
	}
	member := strconv.FormatInt(id, 10)

	if err := r.store.HSet(ctx, r.categoryKey(id), map[string]string{
		"id":         member,
		"project_id": strconv.FormatInt(projectID, 10),
		"name":       name,
		"type":       string(t),
	}); err != nil {
		return 0, fmt.Errorf("write category %d: %w", id, err)
	}
	if err := r.store.SAdd(ctx, r.categoriesIndex(projectID, ""), member); err != nil {
		return 0, fmt.Errorf("index category %d: %w", id, err)
	}
	if err := r.store.SAdd(ctx, r.categoriesIndex(projectID, t), member); err != nil {
		return 0, fmt.Errorf("index category %d by type: %w", id, err)
	}
	return id, nil
}

func (r *KVRepository) ListCategories(ctx context.Context, projectID int64, t models.TxType) ([]models.Category, error) {
	if t != "" && !t.Valid() {
		return nil, models.Invalidf("invalid category type %q", t)
	}
	if err := r.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	ids, err := r.store.SMembers(ctx, r.categoriesIndex(projectID, t))
	if err != nil {
		return nil, fmt.Errorf("list categories of project %d: %w", projectID, err)
	}

	categories := make([]models.Category, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		h, err := r.store.HGetAll(ctx, r.categoryKey(id))
		if err != nil {
			return nil, fmt.Errorf("read category %d: %w", id, err)
		}
		if len(h) == 0 {
			continue
		}
		categories = append(categories, models.Category{
			ID:        parseID(h["id"], id),
			ProjectID: parseID(h["project_id"], projectID),
			Name:      h["name"],
			Type:      models.TxType(h["type"]),
		})
	}
	return categories, nil
}

func (r *KVRepository) DeleteCategory(ctx context.Context, id int64) error {
	key := r.categoryKey(id)
	h, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return fmt.Errorf("read category %d: %w", id, err)
	}
	if len(h) == 0 {
		return ErrNotFound
	}

	member := strconv.FormatInt(id, 10)
	if projectID, err := strconv.ParseInt(h["project_id"], 10, 64); err == nil {
		if err := r.store.SRem(ctx, r.categoriesIndex(projectID, ""), member); err != nil {
			return fmt.Errorf("unindex category %d: %w", id, err)
		}
		if t := models.TxType(h["type"]); t != "" {
			if err := r.store.SRem(ctx, r.categoriesIndex(projectID, t), member); err != nil {
				return fmt.Errorf("unindex category %d by type: %w", id, err)
			}
		}
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

// ---------- transactions ----------

func (r *KVRepository) AddTransaction(ctx context.Context, tx models.NewTransaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	if err := r.requireProject(ctx, tx.ProjectID); err != nil {
		return 0, err
	}
	return r.insertTransaction(ctx, tx)
}

func (r *KVRepository) insertTransaction(ctx context.Context, tx models.NewTransaction) (int64, error) {
	id, err := r.store.Incr(ctx, r.k("transaction:next_id"))
	if err != nil {
		return 0, fmt.Errorf("allocate transaction id: %w", err)
	}
	member := strconv.FormatInt(id, 10)
	now := r.now().UTC()
	month, score := dateparse.IndexPosition(tx.Date, now)

	if err := r.store.HSet(ctx, r.transactionKey(id), map[string]string{
		"id":          member,
		"project_id":  strconv.FormatInt(tx.ProjectID, 10),
		"date":        tx.Date,
		"type":        string(tx.Type),
		"category":    tx.Category,
		"amount":      formatAmount(tx.Amount),
		"description": tx.Description,
		"created_at":  now.Format(timestampLayout),
		"month_key":   month,
	}); err != nil {
		return 0, fmt.Errorf("write transaction %d: %w", id, err)
	}

	if err := r.store.SAdd(ctx, r.txAllIndex(tx.ProjectID), member); err != nil {
		return 0, fmt.Errorf("index transaction %d: %w", id, err)
	}
	if err := r.store.ZAdd(ctx, r.txDateIndex(tx.ProjectID), member, float64(score)); err != nil {
		return 0, fmt.Errorf("index transaction %d by date: %w", id, err)
	}
	if err := r.store.SAdd(ctx, r.txMonthIndex(tx.ProjectID, month), member); err != nil {
		return 0, fmt.Errorf("index transaction %d by month: %w", id, err)
	}
	return id, nil
}

// AddTransactionsBatch validates every item up front, then inserts them in
// order. A store failure stops the batch and returns a *BatchError holding
// the IDs already written.
func (r *KVRepository) AddTransactionsBatch(ctx context.Context, projectID int64, txs []models.NewTransaction) ([]int64, error) {
	if err := validateBatch(projectID, txs); err != nil {
		return nil, err
	}
	if err := r.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(txs))
	for i, tx := range txs {
		id, err := r.insertTransaction(ctx, tx)
		if err != nil {
			return ids, &BatchError{IDs: ids, Index: i, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *KVRepository) ListTransactions(ctx context.Context, projectID int64, month string) ([]models.Transaction, error) {
	if month != "" {
		if err := validateMonth(month); err != nil {
			return nil, err
		}
	}
	if err := r.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	if month == "" {
		ids, err := r.store.ZRevRange(ctx, r.txDateIndex(projectID))
		if err != nil {
			return nil, fmt.Errorf("list transactions of project %d: %w", projectID, err)
		}
		return r.loadTransactions(ctx, ids)
	}

	ids, err := r.store.SMembers(ctx, r.txMonthIndex(projectID, month))
	if err != nil {
		return nil, fmt.Errorf("list transactions of project %d in %s: %w", projectID, month, err)
	}
	txs, err := r.loadTransactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortByDateDesc(txs)
	return txs, nil
}

func (r *KVRepository) loadTransactions(ctx context.Context, ids []string) ([]models.Transaction, error) {
	txs := make([]models.Transaction, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		t, err := r.loadTransaction(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			txs = append(txs, *t)
		}
	}
	return txs, nil
}

func (r *KVRepository) loadTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	h, err := r.store.HGetAll(ctx, r.transactionKey(id))
	if err != nil {
		return nil, fmt.Errorf("read transaction %d: %w", id, err)
	}
	if len(h) == 0 {
		return nil, nil
	}
	amount, _ := strconv.ParseFloat(h["amount"], 64)
	t := &models.Transaction{
		ID:          parseID(h["id"], id),
		ProjectID:   parseID(h["project_id"], 0),
		Date:        h["date"],
		Type:        models.TxType(h["type"]),
		Category:    h["category"],
		Amount:      amount,
		Description: h["description"],
		CreatedAt:   h["created_at"],
		MonthKey:    h["month_key"],
	}
	if t.MonthKey == "" {
		// Records written without a month_key were indexed from their date.
		t.MonthKey, _ = dateparse.IndexPosition(t.Date, r.now())
	}
	return t, nil
}

// UpdateTransaction applies patch. When the date changes the transaction is
// moved between month buckets with a single atomic set move and re-scored
// in the date index before the new fields are written.
func (r *KVRepository) UpdateTransaction(ctx context.Context, id int64, patch models.TransactionPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	existing, err := r.loadTransaction(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}

	updates := map[string]string{}
	if patch.Type != nil {
		updates["type"] = string(*patch.Type)
	}
	if patch.Category != nil {
		updates["category"] = *patch.Category
	}
	if patch.Amount != nil {
		updates["amount"] = formatAmount(*patch.Amount)
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}

	if patch.Date != nil {
		member := strconv.FormatInt(id, 10)
		month, score := dateparse.IndexPosition(*patch.Date, r.now().UTC())

		if month != existing.MonthKey {
			if err := r.store.SMove(ctx,
				r.txMonthIndex(existing.ProjectID, existing.MonthKey),
				r.txMonthIndex(existing.ProjectID, month),
				member,
			); err != nil {
				return fmt.Errorf("move transaction %d to %s: %w", id, month, err)
			}
		}
		if err := r.store.ZAdd(ctx, r.txDateIndex(existing.ProjectID), member, float64(score)); err != nil {
			return fmt.Errorf("rescore transaction %d: %w", id, err)
		}
		updates["date"] = *patch.Date
		updates["month_key"] = month
	}

	if err := r.store.HSet(ctx, r.transactionKey(id), updates); err != nil {
		return fmt.Errorf("write transaction %d: %w", id, err)
	}
	return nil
}

func (r *KVRepository) DeleteTransaction(ctx context.Context, id int64) error {
	t, err := r.loadTransaction(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}

	member := strconv.FormatInt(id, 10)
	if err := r.store.SRem(ctx, r.txAllIndex(t.ProjectID), member); err != nil {
		return fmt.Errorf("unindex transaction %d: %w", id, err)
	}
	if err := r.store.ZRem(ctx, r.txDateIndex(t.ProjectID), member); err != nil {
		return fmt.Errorf("unindex transaction %d by date: %w", id, err)
	}
	if err := r.store.SRem(ctx, r.txMonthIndex(t.ProjectID, t.MonthKey), member); err != nil {
		return fmt.Errorf("unindex transaction %d by month: %w", id, err)
	}
	if err := r.store.Del(ctx, r.transactionKey(id)); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

// ---------- analytics ----------

func (r *KVRepository) MonthlySummary(ctx context.Context, projectID int64) (map[string]models.MonthTotals, error) {
	if err := r.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	ids, err := r.store.SMembers(ctx, r.txAllIndex(projectID))
	if err != nil {
		return nil, fmt.Errorf("list transactions of project %d: %w", projectID, err)
	}
	txs, err := r.loadTransactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	return summarize(txs), nil
}

func (r *KVRepository) CategoryBreakdown(ctx context.Context, projectID int64, month string, t models.TxType) (map[string]float64, error) {
	if err := validateMonth(month); err != nil {
		return nil, err
	}
	if !t.Valid() {
		return nil, models.Invalidf("invalid type %q", t)
	}
	if err := r.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	ids, err := r.store.SMembers(ctx, r.txMonthIndex(projectID, month))
	if err != nil {
		return nil, fmt.Errorf("list transactions of project %d in %s: %w", projectID, month, err)
	}
	txs, err := r.loadTransactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	return breakdown(txs, t), nil
}

func parseID(raw string, fallback int64) int64 {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id
	}
	return fallback
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
