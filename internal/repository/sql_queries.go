package repository

const InsertAgencySQL = `
INSERT INTO agencies (name, address, phone, is_active)
VALUES ($1, $2, $3, $4)
RETURNING id;
`

const SelectAgencySQL = `
SELECT id, name, address, phone, is_active FROM agencies WHERE id = $1;
`

const InsertClientSQL = `
INSERT INTO clients (first_name, last_name, phone, address, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;
`

const SelectClientSQL = `
SELECT id, first_name, last_name, phone, address, created_at FROM clients WHERE id = $1;
`

const SelectClientByPhoneSQL = `
SELECT id, first_name, last_name, phone, address, created_at FROM clients WHERE phone = $1;
`

const SelectUserSQL = `
SELECT id, agency_id, first_name, last_name, email, phone, role, last_login_at, last_logout_at
FROM users WHERE id = $1;
`

const InsertOrderSQL = `
INSERT INTO orders (client_id, agency_id, creator_id, receiver_id, created_at, status, total_amount, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id;
`

const InsertOrderLineSQL = `
INSERT INTO order_lines (order_id, article_name, article_ref, quantity, unit_price, sub_total)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id;
`

const SelectOrderSQL = `
SELECT id, client_id, agency_id, creator_id, receiver_id, created_at, received_at, status, total_amount, notes
FROM orders WHERE id = $1;
`

const SelectOrderForUpdateSQL = `
SELECT id, client_id, agency_id, creator_id, receiver_id, created_at, received_at, status, total_amount, notes
FROM orders WHERE id = $1
FOR UPDATE;
`

const UpdateOrderSQL = `
UPDATE orders SET receiver_id = $1, status = $2, notes = $3, received_at = $4
WHERE id = $5;
`

const SelectOrderLinesSQL = `
SELECT id, order_id, article_name, article_ref, quantity, unit_price, sub_total
FROM order_lines WHERE order_id = $1
ORDER BY id;
`

const SelectAgencyOrdersSQL = `
SELECT
    o.id,
    o.created_at,
    o.received_at,
    o.status,
    COALESCE(c.first_name || ' ' || c.last_name, ''),
    COALESCE(c.phone, ''),
    o.total_amount,
    o.notes
FROM orders o
LEFT JOIN clients c ON c.id = o.client_id
WHERE
    o.agency_id = $1
    AND o.created_at >= $2
    AND o.created_at < $3
ORDER BY o.status, o.created_at;
`

const SelectTabletBySerialSQL = `
SELECT id, serial_number, agency_id, is_active, last_sync_at, push_token
FROM tablets WHERE serial_number = $1;
`

const UpsertTabletSQL = `
INSERT INTO tablets (serial_number, agency_id, is_active, last_sync_at)
VALUES ($1, $2, TRUE, $3)
ON CONFLICT (serial_number) DO UPDATE
SET agency_id = EXCLUDED.agency_id, is_active = TRUE, last_sync_at = EXCLUDED.last_sync_at
RETURNING id, serial_number, agency_id, is_active, last_sync_at, push_token;
`

const TouchTabletSQL = `
UPDATE tablets SET last_sync_at = $2 WHERE serial_number = $1
RETURNING id, serial_number, agency_id, is_active, last_sync_at, push_token;
`

const SetTabletActiveSQL = `
UPDATE tablets SET is_active = $2 WHERE serial_number = $1
RETURNING id, serial_number, agency_id, is_active, last_sync_at, push_token;
`

const SetTabletTokenSQL = `
UPDATE tablets SET push_token = $2 WHERE id = $1;
`

const SelectAgencyTokensSQL = `
SELECT push_token FROM tablets
WHERE agency_id = $1 AND push_token IS NOT NULL AND push_token <> ''
ORDER BY id;
`
