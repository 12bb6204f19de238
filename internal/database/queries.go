package database

// Group queries
const (
	insertGroupQuery = `
		INSERT INTO groups (name, description) VALUES (?, ?)
	`

	selectGroupByIDQuery = `
		SELECT g.id, g.name, g.description, g.created_at, g.updated_at,
		       (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id)
		FROM groups g
		WHERE g.id = ?
	`

	selectGroupByNameQuery = `
		SELECT g.id, g.name, g.description, g.created_at, g.updated_at,
		       (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id)
		FROM groups g
		WHERE g.name = ?
	`

	selectGroupsQuery = `
		SELECT g.id, g.name, g.description, g.created_at, g.updated_at,
		       (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id)
		FROM groups g
		ORDER BY g.created_at DESC
	`

	deleteGroupQuery = `DELETE FROM groups WHERE id = ?`

	insertGroupMemberQuery = `
		INSERT OR IGNORE INTO group_members (group_id, recipient_id) VALUES (?, ?)
	`

	deleteGroupMemberQuery = `
		DELETE FROM group_members WHERE group_id = ? AND recipient_id = ?
	`

	selectGroupMembersQuery = `
		SELECT r.id, r.telegram_id, r.username, r.first_name, r.last_name,
		       r.display_name, r.is_active, r.created_at, r.updated_at, r.last_interaction
		FROM recipients r
		JOIN group_members gm ON gm.recipient_id = r.id
		WHERE gm.group_id = ?
		ORDER BY r.id
	`
)

// Recipient queries
const (
	insertRecipientQuery = `
		INSERT INTO recipients (telegram_id, username, first_name, last_name, display_name, last_interaction)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	updateRecipientQuery = `
		UPDATE recipients
		SET username = ?, first_name = ?, last_name = ?,
		    last_interaction = ?, updated_at = CURRENT_TIMESTAMP
		WHERE telegram_id = ?
	`

	deactivateRecipientQuery = `
		UPDATE recipients SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	selectRecipientByIDQuery = `
		SELECT id, telegram_id, username, first_name, last_name, display_name,
		       is_active, created_at, updated_at, last_interaction
		FROM recipients
		WHERE id = ?
	`

	selectRecipientByTelegramIDQuery = `
		SELECT id, telegram_id, username, first_name, last_name, display_name,
		       is_active, created_at, updated_at, last_interaction
		FROM recipients
		WHERE telegram_id = ?
	`

	selectActiveRecipientsQuery = `
		SELECT id, telegram_id, username, first_name, last_name, display_name,
		       is_active, created_at, updated_at, last_interaction
		FROM recipients
		WHERE is_active = 1
		ORDER BY id
	`
)

// Template queries
const (
	insertTemplateQuery = `
		INSERT INTO message_templates (group_id, name, description) VALUES (?, ?, ?)
	`

	selectTemplateByIDQuery = `
		SELECT id, group_id, name, description, is_active, created_at, updated_at
		FROM message_templates
		WHERE id = ? AND is_active = 1
	`

	selectTemplatesByGroupQuery = `
		SELECT id, group_id, name, description, is_active, created_at, updated_at
		FROM message_templates
		WHERE group_id = ? AND is_active = 1
		ORDER BY created_at DESC
	`

	deactivateTemplateQuery = `
		UPDATE message_templates SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_active = 1
	`

	touchTemplateQuery = `
		UPDATE message_templates SET updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	insertTemplateMessageQuery = `
		INSERT INTO template_messages (template_id, recipient_id, body, position)
		VALUES (?, ?, ?, ?)
	`

	deleteTemplateMessagesQuery = `
		DELETE FROM template_messages WHERE template_id = ?
	`

	selectTemplateMessagesQuery = `
		SELECT id, template_id, recipient_id, body, position
		FROM template_messages
		WHERE template_id = ?
		ORDER BY position
	`
)

// Delivery ledger queries
const (
	insertDeliveryEntryQuery = `
		INSERT INTO delivery_log (group_id, recipient_id, body, status, sent_at)
		VALUES (?, ?, ?, 'pending', ?)
	`

	resolveDeliveryEntryQuery = `
		UPDATE delivery_log
		SET status = ?, provider_message_id = ?, error_text = ?
		WHERE id = ? AND status = 'pending'
	`

	selectDeliveryEntryQuery = `
		SELECT id, group_id, recipient_id, body, status, provider_message_id, error_text, sent_at
		FROM delivery_log
		WHERE id = ?
	`

	deliveryStatsQuery = `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0)
		FROM delivery_log
		WHERE group_id = ?
	`

	pruneDeliveryEntriesQuery = `
		DELETE FROM delivery_log
		WHERE sent_at < datetime('now', '-' || ? || ' days')
	`
)
