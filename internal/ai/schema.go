package ai

// donationsSchemaDescription describes the ClickHouse schema used for NL→SQL prompting.
//
// Keep it in sync with the actual ClickHouse table definition in init.sql.
const donationsSchemaDescription = `
Database: solana
Table: donations

Columns:
  - signature  String        -- Solana transaction signature (unique per signature+token_type)
  - timestamp  DateTime      -- Block time of the donation (UTC), 0 when the ledger had none
  - donor      String        -- Base58 address of the donating wallet
  - amount     Float64       -- Gross donation amount (before the 10% protocol fee)
  - fee        Float64       -- Protocol fee taken out of amount (amount * 0.1)
  - slot       UInt64        -- Slot the transaction landed in
  - token_type String        -- "SOL" for native donations, "token" for SPL token donations
  - mint       String        -- Token mint address, empty for SOL donations
  - symbol     String        -- Token symbol when known, e.g. "TJT", "USDC"
  - decimals   UInt8         -- Token decimal places, 9 for SOL

Notes:
  - amount - fee is what the tip jar was actually credited.
  - For totals use SUM(amount) or SUM(amount - fee) depending on gross vs net.
  - Time filters should use timestamp, e.g. timestamp >= now() - INTERVAL 7 DAY.
  - Group by donor to rank supporters, by symbol to split SOL vs token volume.
`
