package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the sequences and guards the payment ledger relies on
func MigrateConstraints(db *gorm.DB) error {
	statements := []string{
		// Header and detail numbers are allocated before insert
		`CREATE SEQUENCE IF NOT EXISTS payment_seq START WITH 1 INCREMENT BY 1`,
		`CREATE SEQUENCE IF NOT EXISTS payment_detail_seq START WITH 1 INCREMENT BY 1`,

		// remain never leaves [0, total]
		`DO $$ BEGIN
			ALTER TABLE payments ADD CONSTRAINT chk_payments_remain_range
			CHECK (payment_remain >= 0 AND payment_remain <= payment_total);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,

		`DO $$ BEGIN
			ALTER TABLE payment_details ADD CONSTRAINT fk_payment_details_origin
			FOREIGN KEY (payment_detail_origin) REFERENCES payments (payment_no) ON DELETE RESTRICT;
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,

		`CREATE INDEX IF NOT EXISTS idx_payment_details_origin ON payment_details (payment_detail_origin)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user_time ON payments (user_id, payment_time DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_room_members_room_user ON room_members (room_no, users_id)`,
		`CREATE INDEX IF NOT EXISTS idx_room_messages_room_time ON room_messages (room_no, room_message_time)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
