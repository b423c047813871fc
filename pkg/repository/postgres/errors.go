package postgres

import (
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = interfaces.ErrNotFound
	ErrDuplicateKey = interfaces.ErrDuplicateKey
)

// translateError maps gorm errors onto repository sentinels. Requires gorm.Config.TranslateError.
func translateError(err error, msg string, opts ...goerr.Option) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return goerr.Wrap(ErrNotFound, msg, opts...)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return goerr.Wrap(ErrDuplicateKey, msg, opts...)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return goerr.Wrap(ErrNotFound, msg, append(opts, goerr.V("cause", err.Error()))...)
	default:
		return goerr.Wrap(err, msg, opts...)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a substring pattern for ILIKE
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
