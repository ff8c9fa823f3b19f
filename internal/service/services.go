package service

import (
	"crowdfund/internal/config"

	"gorm.io/gorm"
)

// Services wires the ledger components over one database.
type Services struct {
	Ledger      *Ledger
	Fund        *Fund
	TxLog       *TransactionLog
	KYC         *KYCService
	Campaigns   *CampaignService
	Coordinator *Coordinator
	Reconciler  *Reconciler
	Settlements *SettlementService
	Limits      config.Limits
}

func New(db *gorm.DB, limits config.Limits, topics config.KafkaTopicConfig) *Services {
	s := &Services{
		Ledger:      NewLedger(db, limits.CurrencySymbol),
		Fund:        NewFund(db, limits.CurrencySymbol),
		TxLog:       NewTransactionLog(db),
		KYC:         NewKYCService(db),
		Campaigns:   NewCampaignService(db),
		Settlements: NewSettlementService(db),
		Limits:      limits,
	}
	s.Coordinator = NewCoordinator(db, s.Ledger, s.Fund, s.TxLog, s.KYC, s.Campaigns, limits, topics)
	s.Reconciler = NewReconciler(db, s.Ledger, s.Fund, s.TxLog)
	return s
}
