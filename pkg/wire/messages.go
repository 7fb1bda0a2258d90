package wire

// MsgType is the payload's type field (the second u16 of the header).
type MsgType uint16

const (
	SimpleSend               MsgType = 0
	SendToOwners              MsgType = 3
	SendAll                   MsgType = 4
	SendVesting               MsgType = 5
	TradeOffer                MsgType = 20
	AcceptOffer               MsgType = 22
	MetaDExTrade              MsgType = 25
	MetaDExCancelAtPrice      MsgType = 26
	MetaDExCancelPair         MsgType = 27
	MetaDExCancelEcosystem    MsgType = 28
	ContractDexTrade          MsgType = 29
	ContractDexCancelEcosystem MsgType = 32
	ContractDexCancelContract MsgType = 33
	ContractDexCancelByBlock  MsgType = 34
	CreateContract            MsgType = 41
	IssuanceFixed             MsgType = 50
	IssuanceCrowdsale         MsgType = 51
	IssuanceManaged           MsgType = 54
	Grant                     MsgType = 55
	Revoke                    MsgType = 56
	CreateOracleContract      MsgType = 103
	ChangeOracleRef           MsgType = 104
	SetOracle                 MsgType = 105
	OracleBackup              MsgType = 106
	CloseOracle               MsgType = 107
	CommitChannel             MsgType = 108
	WithdrawalFromChannel     MsgType = 109
	InstantTrade              MsgType = 110
	Transfer                  MsgType = 112
	CreateChannel             MsgType = 113
	ContractInstant           MsgType = 114
	NewIdRegistration         MsgType = 115
	UpdateIdRegistration      MsgType = 116
	DExPayment                MsgType = 117
	Freeze                    MsgType = 185
	Unfreeze                  MsgType = 186
	Deactivation              MsgType = 65533
	Activation                MsgType = 65534
	Alert                     MsgType = 65535
)

// Header is the two leading fields every payload carries.
type Header struct {
	Version uint16
	Type    MsgType
}

type MsgSimpleSend struct {
	Property AssetId
	Amount   int64
}

type MsgSendToOwners struct {
	Property             AssetId
	Amount               int64
	DistributionProperty AssetId // present iff Version >= 1
	HasDistribution      bool
}

type MsgSendAll struct {
	Ecosystem uint8
}

type MsgSendVesting struct {
	Property AssetId
	Amount   int64
}

type MsgTradeOffer struct {
	Property      AssetId
	Amount        int64
	AmountDesired int64
	TimeLimit     uint8
	MinFee        int64
	Subaction     uint8
	HasSubaction  bool // Version >= 1
}

type MsgAcceptOffer struct {
	Property AssetId
	Amount   int64
}

type MsgMetaDExTrade struct {
	Property        AssetId
	Amount          int64
	DesiredProperty AssetId
	DesiredAmount   int64
}

type MsgMetaDExCancelAtPrice struct {
	Property        AssetId
	Amount          int64
	DesiredProperty AssetId
	DesiredAmount   int64
}

type MsgMetaDExCancelPair struct {
	Property        AssetId
	DesiredProperty AssetId
}

type MsgMetaDExCancelEcosystem struct {
	Ecosystem uint8
}

type MsgContractDexTrade struct {
	Amount         int64
	EffectivePrice uint64
	Leverage       uint64
	TradingAction  uint8
	Name           string
}

type MsgContractDexCancelEcosystem struct {
	Ecosystem uint8
}

type MsgContractDexCancelContract struct {
	Ecosystem  uint8
	ContractID AssetId
	HasContractID bool
}

// MsgContractDexCancelByBlock preserves the single-byte block/idx width
// named in spec.md §9's open question rather than widening it. A u8 block
// height is unusable against any chain with more than 255 blocks, but
// widening the field changes the wire format and the spec explicitly
// warns not to guess intent; this keeps the original (buggy) width so a
// byte-identical peer can still decode the message.
type MsgContractDexCancelByBlock struct {
	Block uint8
	Idx   uint8
}

type MsgCreateContract struct {
	Ecosystem          uint8
	BlocksUntilExp     uint32
	NotionalSize       uint32
	Collateral         AssetId
	MarginRequirement  uint32
	Name               string
}

type MsgIssuanceFixed struct {
	Ecosystem uint8
	Type      uint16
	PrevID    AssetId
	Category  string
	Subcat    string
	Name      string
	URL       string
	Data      string
	Amount    int64
}

type MsgIssuanceCrowdsale struct {
	MsgIssuanceFixed
	Desired     AssetId
	Rate        int64
	Deadline    int64
	EarlyBonus  uint8
	Percentage  uint8
}

type MsgIssuanceManaged struct {
	Ecosystem uint8
	Type      uint16
	PrevID    AssetId
	Category  string
	Subcat    string
	Name      string
	URL       string
	Data      string
}

type MsgGrantRevoke struct {
	Property AssetId
	Amount   int64
	Memo     string
}

type MsgCreateOracleContract struct {
	MsgCreateContract
}

type MsgChangeOracleRef struct {
	ContractID AssetId
}

type MsgSetOracle struct {
	OracleHigh uint64
	OracleLow  uint64
	Property   AssetId
}

type MsgOracleBackup struct {
	ContractID AssetId
}

type MsgCloseOracle struct {
	ContractID AssetId
}

type MsgCommitChannel struct {
	Property AssetId
	Amount   int64
}

type MsgWithdrawalFromChannel struct {
	Property AssetId
	Amount   int64
}

type MsgInstantTrade struct {
	Property      AssetId
	Amount        int64
	Expiry        uint8
	Desired       AssetId
	DesiredAmount int64
}

type MsgTransfer struct {
	Property AssetId
	Amount   int64
}

type MsgCreateChannel struct {
	ExpiryBlocks uint8
	Address      string
}

type MsgContractInstant struct {
	Property AssetId
	Amount   int64
	Expiry   uint8
	Price    uint64
	Action   uint64
	Leverage uint64
}

type MsgNewIdRegistration struct {
	Tokens  uint8
	Ltc     uint8
	Natives uint8
	Oracles uint8
	Website string
	Company string
}

type MsgFreeze struct {
	Property       AssetId
	Amount         int64
	AddressVersion uint8
	AddressHash160 [20]byte
}

type MsgActivation struct {
	FeatureID         uint16
	ActivationBlock   uint32
	MinClientVersion  uint32
	HasSchedule       bool // present when the payload carries the trailing fields
}

type MsgDeactivation struct {
	FeatureID uint16
}

type MsgAlert struct {
	AlertType   uint16
	AlertExpiry uint32
	AlertText   string
}

// AssetId mirrors types.AssetId without importing pkg/types, keeping the
// wire package dependency-free of engine state — the decoder converts
// at the boundary.
type AssetId = uint32
