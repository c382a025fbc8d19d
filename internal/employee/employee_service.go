package employee

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	employeeerrors "go-hris-leave/internal/employee/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	EmployeeInfoKeyPrefix = "employees:info:"
	infoCacheTTL          = time.Hour
)

func GetEmployeeInfoKey(companyID, employeeID string) string {
	return EmployeeInfoKeyPrefix + companyID + ":" + employeeID
}

// Directory is the read side of the employee registry.
type Directory interface {
	Exists(ctx context.Context, companyID, employeeID string) (bool, error)
	Info(ctx context.Context, companyID, employeeID string) (Info, error)
	// Recipients returns the addresses to notify about the employee's leave:
	// the employee and, when set, their manager.
	Recipients(ctx context.Context, companyID, employeeID string) ([]string, error)
	ListIDs(ctx context.Context, companyID, afterID string, limit int) ([]string, error)
	ListCompanyIDs(ctx context.Context) ([]string, error)
	Invalidate(ctx context.Context, companyID, employeeID string) error
}

type directory struct {
	repo   Repository
	rdb    *redis.Client
	sf     *singleflight.Group
	logger *zap.Logger
}

// NewDirectory caches Info lookups in redis when rdb is not nil.
func NewDirectory(repo Repository, rdb *redis.Client, logger ...*zap.Logger) Directory {
	l := zap.L().Named("employee.directory")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("employee.directory")
	}
	return &directory{repo: repo, rdb: rdb, sf: &singleflight.Group{}, logger: l}
}

func (d *directory) Info(ctx context.Context, companyID, employeeID string) (Info, error) {
	if _, err := uuid.Parse(companyID); err != nil {
		return Info{}, employeeerrors.ErrInvalidCompanyID
	}
	if _, err := uuid.Parse(employeeID); err != nil {
		return Info{}, employeeerrors.ErrInvalidEmployeeID
	}

	cacheKey := GetEmployeeInfoKey(companyID, employeeID)
	if d.rdb != nil {
		if cached, err := d.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var info Info
			if json.Unmarshal([]byte(cached), &info) == nil {
				return info, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			d.logger.Warn("employee info cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	v, err, _ := d.sf.Do(cacheKey, func() (interface{}, error) {
		e, err := d.repo.FindByIDAndCompany(ctx, companyID, employeeID)
		if err != nil {
			return nil, mapRepositoryError(err)
		}
		info := toInfo(*e)

		if d.rdb != nil {
			if payload, err := json.Marshal(info); err == nil {
				if err := d.rdb.Set(ctx, cacheKey, payload, infoCacheTTL).Err(); err != nil {
					d.logger.Warn("employee info cache write failed", zap.String("key", cacheKey), zap.Error(err))
				}
			}
		}
		return info, nil
	})
	if err != nil {
		return Info{}, err
	}
	return v.(Info), nil
}

func (d *directory) Exists(ctx context.Context, companyID, employeeID string) (bool, error) {
	_, err := d.Info(ctx, companyID, employeeID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, employeeerrors.ErrEmployeeNotFound) ||
		errors.Is(err, employeeerrors.ErrInvalidEmployeeID) ||
		errors.Is(err, employeeerrors.ErrInvalidCompanyID) {
		return false, nil
	}
	return false, err
}

func (d *directory) Recipients(ctx context.Context, companyID, employeeID string) ([]string, error) {
	info, err := d.Info(ctx, companyID, employeeID)
	if err != nil {
		return nil, err
	}

	var out []string
	if info.Email != "" {
		out = append(out, info.Email)
	}
	if info.ManagerID != nil {
		manager, err := d.Info(ctx, companyID, *info.ManagerID)
		switch {
		case err == nil && manager.Email != "":
			out = append(out, manager.Email)
		case err != nil && !errors.Is(err, employeeerrors.ErrEmployeeNotFound):
			return nil, err
		}
	}
	return out, nil
}

func (d *directory) ListIDs(ctx context.Context, companyID, afterID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	return d.repo.ListIDs(ctx, companyID, afterID, limit)
}

func (d *directory) ListCompanyIDs(ctx context.Context) ([]string, error) {
	return d.repo.ListCompanyIDs(ctx)
}

func (d *directory) Invalidate(ctx context.Context, companyID, employeeID string) error {
	if d.rdb == nil {
		return nil
	}
	return d.rdb.Del(ctx, GetEmployeeInfoKey(companyID, employeeID)).Err()
}
