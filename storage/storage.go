package storage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"tasks-api/domain"
)

const edmInt32 = "Edm.Int32"

// tableClient is the subset of *aztables.Client used by Storage.
type tableClient interface {
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
}

// serviceClient is the subset of *aztables.ServiceClient used for health probes.
type serviceClient interface {
	GetProperties(ctx context.Context, options *aztables.GetPropertiesOptions) (aztables.GetPropertiesResponse, error)
}

// Storage keeps tasks as entities of a single Azure Table partition.
type Storage struct {
	svc       serviceClient
	table     tableClient
	partition string
}

// New creates a Storage instance from the given connection string.
func New(connStr, tableName, partition string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{svc: svc, table: svc.NewClient(tableName), partition: partition}, nil
}

type taskEntity struct {
	PartitionKey string  `json:"PartitionKey"`
	RowKey       string  `json:"RowKey"`
	Title        string  `json:"Title"`
	Notes        *string `json:"Notes,omitempty"`
	Priority     *string `json:"Priority,omitempty"`
	Completed    *bool   `json:"Completed,omitempty"`
	Order        *int    `json:"Order,omitempty"`
	OrderType    *string `json:"Order@odata.type,omitempty"`
	CreatedAt    *string `json:"CreatedAt,omitempty"`
	UpdatedAt    *string `json:"UpdatedAt,omitempty"`
	DueDate      *string `json:"DueDate,omitempty"`
}

type taskUpdateEntity struct {
	PartitionKey string  `json:"PartitionKey"`
	RowKey       string  `json:"RowKey"`
	Title        *string `json:"Title,omitempty"`
	Notes        *string `json:"Notes,omitempty"`
	Priority     *string `json:"Priority,omitempty"`
	Completed    *bool   `json:"Completed,omitempty"`
	Order        *int    `json:"Order,omitempty"`
	OrderType    *string `json:"Order@odata.type,omitempty"`
	UpdatedAt    *string `json:"UpdatedAt,omitempty"`
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:        ent.RowKey,
		Title:     ent.Title,
		Notes:     ent.Notes,
		Priority:  ent.Priority,
		Completed: ent.Completed,
		Order:     ent.Order,
		CreatedAt: ent.CreatedAt,
		UpdatedAt: ent.UpdatedAt,
		DueDate:   ent.DueDate,
	}, nil
}

func (s *Storage) encodeTask(t domain.Task) ([]byte, error) {
	ent := taskEntity{
		PartitionKey: s.partition,
		RowKey:       t.ID,
		Title:        t.Title,
		Notes:        t.Notes,
		Priority:     t.Priority,
		Completed:    t.Completed,
		Order:        t.Order,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		DueDate:      t.DueDate,
	}
	if ent.Order != nil {
		ent.OrderType = to.Ptr(edmInt32)
	}
	return sonic.Marshal(ent)
}

func (s *Storage) encodeUpdate(upd domain.TaskUpdate) ([]byte, error) {
	ent := taskUpdateEntity{
		PartitionKey: s.partition,
		RowKey:       upd.ID,
		Title:        upd.Title,
		Notes:        upd.Notes,
		Priority:     upd.Priority,
		Completed:    upd.Completed,
		Order:        upd.Order,
		UpdatedAt:    upd.UpdatedAt,
	}
	if ent.Order != nil {
		ent.OrderType = to.Ptr(edmInt32)
	}
	return sonic.Marshal(ent)
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// ListTasks returns every task in the partition in storage order.
func (s *Storage) ListTasks(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + strings.ReplaceAll(s.partition, "'", "''") + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// GetTask retrieves a task if present.
func (s *Storage) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	ent, err := s.table.GetEntity(ctx, s.partition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	t, err := decodeTaskEntity(ent.Value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTask adds a task under a freshly assigned id and returns that id.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) (string, error) {
	t.ID = domain.NewID()
	payload, err := s.encodeTask(t)
	if err != nil {
		return "", err
	}
	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		return "", err
	}
	return t.ID, nil
}

// UpdateTask merges the supplied fields into an existing task. It reports
// false when the task does not exist.
func (s *Storage) UpdateTask(ctx context.Context, upd domain.TaskUpdate) (bool, error) {
	payload, err := s.encodeUpdate(upd)
	if err != nil {
		return false, err
	}
	et := azcore.ETagAny
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteTask removes a task. It reports false when the task does not exist.
func (s *Storage) DeleteTask(ctx context.Context, id string) (bool, error) {
	et := azcore.ETagAny
	if _, err := s.table.DeleteEntity(ctx, s.partition, id, &aztables.DeleteEntityOptions{IfMatch: &et}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ping checks that the table service answers.
func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.svc.GetProperties(ctx, nil)
	return err
}

// CreateTable creates the tasks table, tolerating an existing one.
func (s *Storage) CreateTable(ctx context.Context) error {
	_, err := s.table.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}
