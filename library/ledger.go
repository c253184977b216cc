package library

import "time"

// Ledger is the append-mostly log of borrow/return transactions. It is the
// only writer of due dates, return dates and fines. Entries are mutated
// exactly once, on return, and are never deleted.
type Ledger struct {
	Transactions []*Transaction
}

// NextID returns the next monotonically increasing transaction id.
func (l *Ledger) NextID() int {
	max := 0
	for _, t := range l.Transactions {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}

// Append adds a transaction to the log.
func (l *Ledger) Append(t *Transaction) { l.Transactions = append(l.Transactions, t) }

// Find returns the transaction with the given id.
func (l *Ledger) Find(id int) *Transaction {
	for _, t := range l.Transactions {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// OpenFor returns the open transaction for the (user, book) pair, if any.
// The engine guarantees there is at most one.
func (l *Ledger) OpenFor(userID, bookID string) *Transaction {
	for _, t := range l.Transactions {
		if t.Open() && t.UserID == userID && t.BookID == bookID {
			return t
		}
	}
	return nil
}

// OpenByBook returns all currently open transactions for a book.
func (l *Ledger) OpenByBook(bookID string) []*Transaction {
	var open []*Transaction
	for _, t := range l.Transactions {
		if t.Open() && t.BookID == bookID {
			open = append(open, t)
		}
	}
	return open
}

// OpenByUser returns all currently open transactions for a user.
func (l *Ledger) OpenByUser(userID string) []*Transaction {
	var open []*Transaction
	for _, t := range l.Transactions {
		if t.Open() && t.UserID == userID {
			open = append(open, t)
		}
	}
	return open
}

// ByUser returns a user's full transaction history in log order.
func (l *Ledger) ByUser(userID string) []*Transaction {
	var out []*Transaction
	for _, t := range l.Transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// ComputeFine computes the late penalty for a return. It charges FinePerDay
// per whole day past the due date and never goes negative; returns on or
// before the due date cost nothing. Pure function, usable standalone.
func ComputeFine(dueDate, returnDate time.Time) int {
	daysLate := int(returnDate.Sub(dueDate) / (24 * time.Hour))
	if daysLate <= 0 {
		return 0
	}
	return daysLate * FinePerDay
}
