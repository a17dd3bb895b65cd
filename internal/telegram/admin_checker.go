package telegram

import (
	"slices"

	"github.com/samber/lo"
)

// AdminChecker проверяет является ли пользователь админом
type AdminChecker struct {
	adminIDs []int64
	admins   map[int64]struct{}
}

// NewAdminChecker создает новый проверялка админов
func NewAdminChecker(adminIDs []int64) *AdminChecker {
	ids := lo.Uniq(adminIDs)
	slices.Sort(ids)
	return &AdminChecker{
		adminIDs: ids,
		admins: lo.SliceToMap(ids, func(id int64) (int64, struct{}) {
			return id, struct{}{}
		}),
	}
}

// IsAdmin проверяет является ли пользователь с данным Telegram ID админом
func (a *AdminChecker) IsAdmin(telegramID int64) bool {
	_, ok := a.admins[telegramID]
	return ok
}

// AdminIDs отсортированный список админов без повторов.
func (a *AdminChecker) AdminIDs() []int64 {
	return slices.Clone(a.adminIDs)
}
