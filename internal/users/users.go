// Package users handles accounts: registration, login checks, profile,
// saved addresses and the wishlist.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAddressNotFound    = errors.New("address not found")
	ErrAlreadyInWishlist  = errors.New("product already in wishlist")
	ErrNotInWishlist      = errors.New("product not found in wishlist")
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		er := tx.Rollback()
		if er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}

// InsertUser registers a new customer account. The email must be unused.
func (c *Conf) InsertUser(ctx context.Context, nu NewUser) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	user := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Role:      RoleCustomer,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	err = c.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, nu.Email).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if exists {
			return ErrUserExists
		}

		query := `
			INSERT INTO users (id, name, email, password_hash, phone, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err = tx.ExecContext(ctx, query, user.ID, user.Name, user.Email,
			string(hash), user.Phone, user.Role, user.CreatedAt, user.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate looks the user up by email and compares the password.
// Missing user and wrong password are indistinguishable to the caller.
func (c *Conf) Authenticate(ctx context.Context, email, password string) (User, error) {
	query := `
		SELECT id, name, email, password_hash, phone, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var u User
	err := c.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// GetUserByID returns the user with addresses loaded.
func (c *Conf) GetUserByID(ctx context.Context, userID string) (User, error) {
	query := `
		SELECT id, name, email, password_hash, phone, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u User
	err := c.db.QueryRowContext(ctx, query, userID).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}

	addresses, err := c.listAddresses(ctx, c.db, userID)
	if err != nil {
		return User{}, err
	}
	u.Addresses = addresses
	return u, nil
}

// UpdateUserProfile patches the supplied fields, rehashing the password
// when a new one is given.
func (c *Conf) UpdateUserProfile(ctx context.Context, userID string, up UpdateProfile) (User, error) {
	var passwordHash string
	if up.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(up.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("hashing password: %w", err)
		}
		passwordHash = string(hash)
	}

	query := `
		UPDATE users
		SET name = COALESCE(NULLIF($2, ''), name),
		    email = COALESCE(NULLIF($3, ''), email),
		    phone = COALESCE(NULLIF($4, ''), phone),
		    password_hash = COALESCE(NULLIF($5, ''), password_hash),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, email, password_hash, phone, role, created_at, updated_at
	`
	var u User
	err := c.db.QueryRowContext(ctx, query, userID, up.Name, up.Email, up.Phone, passwordHash).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// UpdateUser is the admin patch: name, email and role.
func (c *Conf) UpdateUser(ctx context.Context, userID, name, email, role string) (User, error) {
	query := `
		UPDATE users
		SET name = COALESCE(NULLIF($2, ''), name),
		    email = COALESCE(NULLIF($3, ''), email),
		    role = COALESCE(NULLIF($4, ''), role),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, email, password_hash, phone, role, created_at, updated_at
	`
	var u User
	err := c.db.QueryRowContext(ctx, query, userID, name, email, role).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

func (c *Conf) DeleteUser(ctx context.Context, userID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns a page of accounts with the total count.
func (c *Conf) ListUsers(ctx context.Context, page, pageSize int) ([]User, int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `
		SELECT id, name, email, phone, role, created_at, updated_at
		FROM users
		ORDER BY created_at
		LIMIT $1 OFFSET $2
	`
	rows, err := c.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating users: %w", err)
	}
	return result, count, nil
}

type queryer interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

func (c *Conf) listAddresses(ctx context.Context, q queryer, userID string) ([]Address, error) {
	query := `
		SELECT id, street, city, state, zip_code, country, is_default
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, id
	`
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var addresses []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.Street, &a.City, &a.State, &a.ZipCode, &a.Country, &a.IsDefault); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}
	return addresses, nil
}

// AddAddress appends an address. The first address is always the default;
// adding a new default clears the previous one. Runs in one transaction so
// the single-default invariant holds at commit.
func (c *Conf) AddAddress(ctx context.Context, userID string, na NewAddress) ([]Address, error) {
	var addresses []Address
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM addresses WHERE user_id = $1`, userID).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to count addresses: %w", err)
		}

		isDefault := na.IsDefault || count == 0
		if isDefault {
			_, err := tx.ExecContext(ctx,
				`UPDATE addresses SET is_default = FALSE WHERE user_id = $1`, userID)
			if err != nil {
				return fmt.Errorf("failed to clear default address: %w", err)
			}
		}

		query := `
			INSERT INTO addresses (id, user_id, street, city, state, zip_code, country, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err = tx.ExecContext(ctx, query, uuid.NewString(), userID,
			na.Street, na.City, na.State, na.ZipCode, na.Country, isDefault)
		if err != nil {
			return fmt.Errorf("failed to insert address: %w", err)
		}

		addresses, err = c.listAddresses(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

// UpdateAddress patches an address; promoting it to default demotes the
// current one in the same transaction.
func (c *Conf) UpdateAddress(ctx context.Context, userID, addressID string, na NewAddress) ([]Address, error) {
	var addresses []Address
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`,
			addressID, userID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check address: %w", err)
		}
		if !exists {
			return ErrAddressNotFound
		}

		if na.IsDefault {
			_, err := tx.ExecContext(ctx,
				`UPDATE addresses SET is_default = FALSE WHERE user_id = $1`, userID)
			if err != nil {
				return fmt.Errorf("failed to clear default address: %w", err)
			}
		}

		query := `
			UPDATE addresses
			SET street = COALESCE(NULLIF($3, ''), street),
			    city = COALESCE(NULLIF($4, ''), city),
			    state = COALESCE(NULLIF($5, ''), state),
			    zip_code = COALESCE(NULLIF($6, ''), zip_code),
			    country = COALESCE(NULLIF($7, ''), country),
			    is_default = is_default OR $8
			WHERE id = $1 AND user_id = $2
		`
		_, err = tx.ExecContext(ctx, query, addressID, userID,
			na.Street, na.City, na.State, na.ZipCode, na.Country, na.IsDefault)
		if err != nil {
			return fmt.Errorf("failed to update address: %w", err)
		}

		addresses, err = c.listAddresses(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

// DeleteAddress removes an address. Deleting the default promotes the
// oldest remaining address so the invariant survives.
func (c *Conf) DeleteAddress(ctx context.Context, userID, addressID string) ([]Address, error) {
	var addresses []Address
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var wasDefault bool
		err := tx.QueryRowContext(ctx,
			`DELETE FROM addresses WHERE id = $1 AND user_id = $2 RETURNING is_default`,
			addressID, userID).Scan(&wasDefault)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAddressNotFound
			}
			return fmt.Errorf("failed to delete address: %w", err)
		}

		if wasDefault {
			promote := `
				UPDATE addresses
				SET is_default = TRUE
				WHERE id = (SELECT id FROM addresses WHERE user_id = $1 ORDER BY id LIMIT 1)
			`
			if _, err := tx.ExecContext(ctx, promote, userID); err != nil {
				return fmt.Errorf("failed to promote default address: %w", err)
			}
		}

		addresses, err = c.listAddresses(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

// AddToWishlist inserts a product reference; duplicates are rejected.
func (c *Conf) AddToWishlist(ctx context.Context, userID, productID string) ([]string, error) {
	var wishlist []string
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM wishlist WHERE user_id = $1 AND product_id = $2)`,
			userID, productID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check wishlist: %w", err)
		}
		if exists {
			return ErrAlreadyInWishlist
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO wishlist (user_id, product_id) VALUES ($1, $2)`, userID, productID)
		if err != nil {
			return fmt.Errorf("failed to insert wishlist entry: %w", err)
		}

		wishlist, err = c.listWishlist(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wishlist, nil
}

func (c *Conf) RemoveFromWishlist(ctx context.Context, userID, productID string) ([]string, error) {
	var wishlist []string
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM wishlist WHERE user_id = $1 AND product_id = $2`, userID, productID)
		if err != nil {
			return fmt.Errorf("failed to delete wishlist entry: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return ErrNotInWishlist
		}

		wishlist, err = c.listWishlist(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wishlist, nil
}

func (c *Conf) listWishlist(ctx context.Context, q queryer, userID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT product_id FROM wishlist WHERE user_id = $1 ORDER BY product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist: %w", err)
	}
	defer rows.Close()

	var wishlist []string
	for rows.Next() {
		var productID string
		if err := rows.Scan(&productID); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist entry: %w", err)
		}
		wishlist = append(wishlist, productID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist: %w", err)
	}
	return wishlist, nil
}

// GetWishlist returns the product ids saved by the user.
func (c *Conf) GetWishlist(ctx context.Context, userID string) ([]string, error) {
	return c.listWishlist(ctx, c.db, userID)
}
