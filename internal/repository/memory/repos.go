package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"parksync/internal/db"
	"parksync/internal/repository"
)

type userRepo struct{ st *state }

func (r userRepo) Create(_ context.Context, u *db.User) error {
	email := strings.ToLower(u.Email)
	for _, existing := range r.st.users {
		if existing.Email == email {
			return fmt.Errorf("%w: users_email_key", repository.ErrDuplicate)
		}
		if existing.Username == u.Username {
			return fmt.Errorf("%w: users_username_key", repository.ErrDuplicate)
		}
	}
	u.ID = r.st.id()
	u.Email = email
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.st.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*db.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*db.User, error) {
	email = strings.ToLower(email)
	for _, u := range r.st.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*db.User, error) {
	for _, u := range r.st.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type lotRepo struct{ st *state }

func (r lotRepo) Create(_ context.Context, lot *db.ParkingLot) error {
	lot.ID = r.st.id()
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC()
	}
	r.st.lots[lot.ID] = *lot
	return nil
}

func (r lotRepo) GetByID(_ context.Context, id int64) (*db.ParkingLot, error) {
	lot, ok := r.st.lots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &lot, nil
}

func (r lotRepo) GetByIDForUpdate(ctx context.Context, id int64) (*db.ParkingLot, error) {
	return r.GetByID(ctx, id)
}

func (r lotRepo) List(_ context.Context) ([]db.LotSummary, error) {
	out := make([]db.LotSummary, 0, len(r.st.lots))
	for _, lot := range r.st.lots {
		s := db.LotSummary{ParkingLot: lot}
		for _, spot := range r.st.spots {
			if spot.LotID != lot.ID {
				continue
			}
			s.SpotCount++
			if spot.IsBooked {
				s.BookedSpots++
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r lotRepo) UpdateTotalSpots(_ context.Context, id int64, total int) error {
	lot, ok := r.st.lots[id]
	if !ok {
		return repository.ErrNotFound
	}
	lot.TotalSpots = total
	r.st.lots[id] = lot
	return nil
}

// Delete cascades to the lot's spots and detaches their reservations.
func (r lotRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.st.lots[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.st.lots, id)
	var spotIDs []int64
	for sid, spot := range r.st.spots {
		if spot.LotID == id {
			spotIDs = append(spotIDs, sid)
		}
	}
	deleteSpots(r.st, spotIDs)
	return nil
}

func deleteSpots(st *state, ids []int64) {
	gone := make(map[int64]bool, len(ids))
	for _, id := range ids {
		delete(st.spots, id)
		gone[id] = true
	}
	for rid, res := range st.reservations {
		if res.SpotID != nil && gone[*res.SpotID] {
			res.SpotID = nil
			st.reservations[rid] = res
		}
	}
}

type spotRepo struct{ st *state }

func (r spotRepo) CreateBatch(_ context.Context, lotID int64, numbers []int) error {
	taken := map[int]bool{}
	for _, s := range r.st.spots {
		if s.LotID == lotID {
			taken[s.SpotNumber] = true
		}
	}
	for _, n := range numbers {
		if taken[n] {
			return fmt.Errorf("%w: parking_spots_lot_id_spot_number_key", repository.ErrDuplicate)
		}
		taken[n] = true
		id := r.st.id()
		r.st.spots[id] = db.ParkingSpot{ID: id, LotID: lotID, SpotNumber: n}
	}
	return nil
}

func (r spotRepo) GetByID(_ context.Context, id int64) (*db.ParkingSpot, error) {
	s, ok := r.st.spots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r spotRepo) GetByIDForUpdate(ctx context.Context, id int64) (*db.ParkingSpot, error) {
	return r.GetByID(ctx, id)
}

func (r spotRepo) FirstAvailable(ctx context.Context, lotID int64) (*db.ParkingSpot, error) {
	spots, _ := r.ListByLot(ctx, lotID)
	for _, s := range spots {
		if !s.IsBooked {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r spotRepo) ListByLot(_ context.Context, lotID int64) ([]db.ParkingSpot, error) {
	var out []db.ParkingSpot
	for _, s := range r.st.spots {
		if s.LotID == lotID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpotNumber < out[j].SpotNumber })
	return out, nil
}

func (r spotRepo) SetBooked(_ context.Context, id int64, booked bool) error {
	s, ok := r.st.spots[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.IsBooked = booked
	r.st.spots[id] = s
	return nil
}

func (r spotRepo) DeleteByIDs(_ context.Context, ids []int64) error {
	deleteSpots(r.st, ids)
	return nil
}

type reservationRepo struct{ st *state }

// resolve fills the live fields the way the Postgres outer joins do.
func (r reservationRepo) resolve(res db.Reservation) db.Reservation {
	res.LiveLotID, res.LiveLotName, res.LiveSpotNumber, res.LivePricePerHour = nil, nil, nil, nil
	if res.SpotID == nil {
		return res
	}
	spot, ok := r.st.spots[*res.SpotID]
	if !ok {
		return res
	}
	number := spot.SpotNumber
	res.LiveSpotNumber = &number
	lot, ok := r.st.lots[spot.LotID]
	if !ok {
		return res
	}
	lotID, name, price := lot.ID, lot.Name, lot.PricePerHour
	res.LiveLotID, res.LiveLotName, res.LivePricePerHour = &lotID, &name, &price
	return res
}

func (r reservationRepo) Create(_ context.Context, res *db.Reservation) error {
	if res.IsActive {
		for _, other := range r.st.reservations {
			if !other.IsActive {
				continue
			}
			if other.UserID == res.UserID {
				return fmt.Errorf("%w: reservations_one_active_per_user", repository.ErrDuplicate)
			}
			if res.SpotID != nil && other.SpotID != nil && *other.SpotID == *res.SpotID {
				return fmt.Errorf("%w: reservations_one_active_per_spot", repository.ErrDuplicate)
			}
		}
	}
	res.ID = r.st.id()
	stored := *res
	stored.LiveLotID, stored.LiveLotName, stored.LiveSpotNumber, stored.LivePricePerHour = nil, nil, nil, nil
	r.st.reservations[res.ID] = stored
	return nil
}

func (r reservationRepo) GetByID(_ context.Context, id int64) (*db.Reservation, error) {
	res, ok := r.st.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	res = r.resolve(res)
	return &res, nil
}

func (r reservationRepo) GetByIDForUpdate(ctx context.Context, id int64) (*db.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r reservationRepo) GetActiveByUser(_ context.Context, userID int64) (*db.Reservation, error) {
	for _, res := range r.st.reservations {
		if res.IsActive && res.UserID == userID {
			res = r.resolve(res)
			return &res, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r reservationRepo) filter(keep func(db.Reservation) bool, newestFirst bool) []db.Reservation {
	var out []db.Reservation
	for _, res := range r.st.reservations {
		res = r.resolve(res)
		if keep(res) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !newestFirst {
			return out[i].ID < out[j].ID
		}
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r reservationRepo) ListByUser(_ context.Context, userID int64) ([]db.Reservation, error) {
	return r.filter(func(res db.Reservation) bool { return res.UserID == userID }, true), nil
}

func (r reservationRepo) ListAll(_ context.Context) ([]db.Reservation, error) {
	return r.filter(func(db.Reservation) bool { return true }, true), nil
}

func (r reservationRepo) ListActive(_ context.Context) ([]db.Reservation, error) {
	return r.filter(func(res db.Reservation) bool { return res.IsActive }, true), nil
}

func (r reservationRepo) ListByLot(_ context.Context, lotID int64) ([]db.Reservation, error) {
	return r.filter(func(res db.Reservation) bool {
		if res.SpotID == nil {
			return false
		}
		spot, ok := r.st.spots[*res.SpotID]
		return ok && spot.LotID == lotID
	}, false), nil
}

func (r reservationRepo) ListBySpots(_ context.Context, spotIDs []int64) ([]db.Reservation, error) {
	want := make(map[int64]bool, len(spotIDs))
	for _, id := range spotIDs {
		want[id] = true
	}
	return r.filter(func(res db.Reservation) bool {
		return res.SpotID != nil && want[*res.SpotID]
	}, false), nil
}

func (r reservationRepo) ListMissingSnapshot(_ context.Context, limit int) ([]db.Reservation, error) {
	out := r.filter(func(res db.Reservation) bool {
		return res.SpotID != nil && !res.HasSnapshot()
	}, false)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r reservationRepo) Close(_ context.Context, id int64, endTime time.Time) error {
	res, ok := r.st.reservations[id]
	if !ok || !res.IsActive {
		return repository.ErrNotFound
	}
	end := endTime
	res.EndTime = &end
	res.IsActive = false
	r.st.reservations[id] = res
	return nil
}

func (r reservationRepo) SaveSnapshot(_ context.Context, res *db.Reservation) error {
	stored, ok := r.st.reservations[res.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.LotNameSnapshot = res.LotNameSnapshot
	stored.SpotNumberSnapshot = res.SpotNumberSnapshot
	stored.PricePerHourSnapshot = res.PricePerHourSnapshot
	r.st.reservations[res.ID] = stored
	return nil
}

type paymentRepo struct{ st *state }

func (r paymentRepo) Create(_ context.Context, p *db.Payment) error {
	for _, other := range r.st.payments {
		if other.ReservationID == p.ReservationID {
			return fmt.Errorf("%w: payments_reservation_id_key", repository.ErrDuplicate)
		}
	}
	p.ID = r.st.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.st.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) GetByID(_ context.Context, id int64) (*db.Payment, error) {
	p, ok := r.st.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r paymentRepo) GetByIDForUpdate(ctx context.Context, id int64) (*db.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r paymentRepo) find(match func(db.Payment) bool) (*db.Payment, error) {
	for _, p := range r.st.payments {
		if match(p) {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r paymentRepo) GetByReservation(_ context.Context, reservationID int64) (*db.Payment, error) {
	return r.find(func(p db.Payment) bool { return p.ReservationID == reservationID })
}

func (r paymentRepo) GetByCheckoutSession(_ context.Context, sessionID string) (*db.Payment, error) {
	return r.find(func(p db.Payment) bool {
		return p.CheckoutSessionID != nil && *p.CheckoutSessionID == sessionID
	})
}

func (r paymentRepo) ListByStatus(_ context.Context, paid bool) ([]db.Payment, error) {
	var out []db.Payment
	for _, p := range r.st.payments {
		if p.IsPaid == paid {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if paid {
			if !out[i].PaymentDate.Equal(*out[j].PaymentDate) {
				return out[i].PaymentDate.After(*out[j].PaymentDate)
			}
			return out[i].ID > out[j].ID
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r paymentRepo) ListUnpaidBefore(ctx context.Context, before time.Time) ([]db.Payment, error) {
	unpaid, _ := r.ListByStatus(ctx, false)
	var out []db.Payment
	for _, p := range unpaid {
		if p.CreatedAt.Before(before) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r paymentRepo) MarkPaid(_ context.Context, id int64, at time.Time) (bool, error) {
	p, ok := r.st.payments[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if p.IsPaid {
		return false, nil
	}
	paidAt := at
	p.IsPaid = true
	p.PaymentDate = &paidAt
	r.st.payments[id] = p
	return true, nil
}

func (r paymentRepo) SetCheckoutSession(_ context.Context, id int64, sessionID string) error {
	p, ok := r.st.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, other := range r.st.payments {
		if other.ID != id && other.CheckoutSessionID != nil && *other.CheckoutSessionID == sessionID {
			return fmt.Errorf("%w: payments_checkout_session_id_key", repository.ErrDuplicate)
		}
	}
	s := sessionID
	p.CheckoutSessionID = &s
	r.st.payments[id] = p
	return nil
}
