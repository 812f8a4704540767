package vm

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("garnet.vm")

const debugLevel = commonlog.Debug
