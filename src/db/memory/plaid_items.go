package memory

import (
	"context"
	"fmt"
	"sort"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"
)

// withState runs fn on the user's committed state under the user's lock.
func (s *Store) withState(userID int64, fn func(st *state) error) error {
	ul := s.ledgerFor(userID)
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return fn(ul.state)
}

func (s *Store) CreateItem(ctx context.Context, item *models.PlaidItem) (*models.PlaidItem, error) {
	s.mu.Lock()
	_, taken := s.itemOwners[item.ItemID]
	s.mu.Unlock()
	if taken {
		return nil, ledger.Conflict("plaid item", "item %q is already linked", item.ItemID)
	}
	created := *item
	created.ID = s.id()
	created.CreatedAt = s.now()
	if created.Status == "" {
		created.Status = "active"
	}
	err := s.withState(item.UserID, func(st *state) error {
		st.items[created.ID] = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.itemOwners[created.ItemID] = created.UserID
	s.mu.Unlock()
	return &created, nil
}

func (s *Store) ListItems(ctx context.Context, userID int64) ([]models.PlaidItem, error) {
	var items []models.PlaidItem
	err := s.withState(userID, func(st *state) error {
		for _, it := range st.items {
			items = append(items, it)
		}
		return nil
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, err
}

func (s *Store) GetItem(ctx context.Context, userID, id int64) (*models.PlaidItem, error) {
	var item models.PlaidItem
	err := s.withState(userID, func(st *state) error {
		it, ok := st.items[id]
		if !ok {
			return ledger.NotFound("plaid item", id)
		}
		item = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) FindItemByExternalID(ctx context.Context, itemID string) (*models.PlaidItem, error) {
	s.mu.Lock()
	userID, ok := s.itemOwners[itemID]
	s.mu.Unlock()
	if !ok {
		return nil, &ledger.Error{Kind: ledger.KindNotFound, Entity: "plaid item", Msg: fmt.Sprintf("item %q not found", itemID)}
	}
	var item *models.PlaidItem
	err := s.withState(userID, func(st *state) error {
		for _, it := range st.items {
			if it.ItemID == itemID {
				found := it
				item = &found
				return nil
			}
		}
		return &ledger.Error{Kind: ledger.KindNotFound, Entity: "plaid item", Msg: fmt.Sprintf("item %q not found", itemID)}
	})
	return item, err
}

func (s *Store) UpdateItemCursor(ctx context.Context, userID, id int64, cursor string) error {
	return s.withState(userID, func(st *state) error {
		it, ok := st.items[id]
		if !ok {
			return ledger.NotFound("plaid item", id)
		}
		it.SyncCursor = cursor
		st.items[id] = it
		return nil
	})
}

func (s *Store) DeleteItem(ctx context.Context, userID, id int64) error {
	var itemID string
	err := s.withState(userID, func(st *state) error {
		it, ok := st.items[id]
		if !ok {
			return ledger.NotFound("plaid item", id)
		}
		itemID = it.ItemID
		delete(st.items, id)
		return nil
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.itemOwners, itemID)
	s.mu.Unlock()
	return nil
}
