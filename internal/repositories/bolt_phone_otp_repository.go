package repositories

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"phoneotp/internal/models"
)

var (
	bucketPhoneOTPs   = []byte("phone_otps")    // phone -> (created_at|id -> row)
	bucketPhoneOTPIDs = []byte("phone_otp_ids") // id -> phone
)

// BoltPhoneOTPRepository keeps pending codes in a local bolt file for
// single-node deployments. Rows of one phone live in a nested bucket keyed by
// big-endian creation time, so the cursor's last entry is the newest.
type BoltPhoneOTPRepository struct {
	DB *bolt.DB
}

func OpenBoltPhoneOTPRepository(path string) (*BoltPhoneOTPRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPhoneOTPs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketPhoneOTPIDs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt buckets: %w", err)
	}
	return &BoltPhoneOTPRepository{DB: db}, nil
}

func (r *BoltPhoneOTPRepository) Close() error {
	return r.DB.Close()
}

func rowKey(otp *models.PhoneOTP) []byte {
	key := make([]byte, 8, 8+len(otp.ID))
	binary.BigEndian.PutUint64(key, uint64(otp.CreatedAt.UnixNano()))
	return append(key, otp.ID...)
}

func (r *BoltPhoneOTPRepository) Create(_ context.Context, otp *models.PhoneOTP) error {
	if otp.ID == "" {
		otp.ID = uuid.NewString()
	}
	b, err := jsoniter.Marshal(otp)
	if err != nil {
		return fmt.Errorf("encode phone otp: %w", err)
	}
	err = r.DB.Update(func(tx *bolt.Tx) error {
		phones, err := tx.Bucket(bucketPhoneOTPs).CreateBucketIfNotExists([]byte(otp.Phone))
		if err != nil {
			return err
		}
		if err := phones.Put(rowKey(otp), b); err != nil {
			return err
		}
		return tx.Bucket(bucketPhoneOTPIDs).Put([]byte(otp.ID), []byte(otp.Phone))
	})
	if err != nil {
		return fmt.Errorf("create phone otp: %w", err)
	}
	return nil
}

func (r *BoltPhoneOTPRepository) ExistsSince(ctx context.Context, phone string, since time.Time) (bool, error) {
	latest, err := r.GetLatestByPhone(ctx, phone)
	if err != nil {
		return false, err
	}
	return latest != nil && !latest.CreatedAt.Before(since), nil
}

func (r *BoltPhoneOTPRepository) GetLatestByPhone(_ context.Context, phone string) (*models.PhoneOTP, error) {
	var otp *models.PhoneOTP
	err := r.DB.View(func(tx *bolt.Tx) error {
		phones := tx.Bucket(bucketPhoneOTPs).Bucket([]byte(phone))
		if phones == nil {
			return nil
		}
		_, v := phones.Cursor().Last()
		if v == nil {
			return nil
		}
		otp = new(models.PhoneOTP)
		return jsoniter.Unmarshal(v, otp)
	})
	if err != nil {
		return nil, fmt.Errorf("get latest phone otp: %w", err)
	}
	return otp, nil
}

func (r *BoltPhoneOTPRepository) Delete(_ context.Context, id string) error {
	err := r.DB.Update(func(tx *bolt.Tx) error {
		ids := tx.Bucket(bucketPhoneOTPIDs)
		phone := ids.Get([]byte(id))
		if phone == nil {
			return nil
		}
		if phones := tx.Bucket(bucketPhoneOTPs).Bucket(phone); phones != nil {
			c := phones.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if string(k[8:]) == id {
					if err := c.Delete(); err != nil {
						return err
					}
					break
				}
			}
		}
		return ids.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("delete phone otp: %w", err)
	}
	return nil
}
