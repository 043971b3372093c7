package contract

// Hand-maintained ABI fragments for the exchange and the owner/operator
// proxy. Only the entry points the client consumes are declared.

const exchangeABIJSON = `[
  {"type":"function","name":"getAccountById","stateMutability":"view",
   "inputs":[{"name":"accountId","type":"uint64"}],
   "outputs":[{"name":"id","type":"uint64"},{"name":"owner","type":"address"},
              {"name":"balanceCNS","type":"uint256"},{"name":"lockedBalanceCNS","type":"uint256"}]},
  {"type":"function","name":"getAccountByAddress","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"id","type":"uint64"},{"name":"ownerOut","type":"address"},
              {"name":"balanceCNS","type":"uint256"},{"name":"lockedBalanceCNS","type":"uint256"}]},
  {"type":"function","name":"getPerpetualInfo","stateMutability":"view",
   "inputs":[{"name":"perpId","type":"uint64"}],
   "outputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},
              {"name":"priceDecimals","type":"uint8"},{"name":"lotDecimals","type":"uint8"},
              {"name":"basePricePNS","type":"uint256"},
              {"name":"markPNS","type":"uint256"},{"name":"oraclePNS","type":"uint256"},
              {"name":"markTs","type":"uint64"},{"name":"oracleTs","type":"uint64"},
              {"name":"fundingRatePer100k","type":"int256"},{"name":"nextFundingTs","type":"uint64"},
              {"name":"openInterestLongLNS","type":"uint256"},{"name":"openInterestShortLNS","type":"uint256"},
              {"name":"maxBidPriceONS","type":"int256"},{"name":"minBidPriceONS","type":"int256"},
              {"name":"maxAskPriceONS","type":"int256"},{"name":"minAskPriceONS","type":"int256"},
              {"name":"totalOrders","type":"uint64"},{"name":"paused","type":"bool"}]},
  {"type":"function","name":"getPosition","stateMutability":"view",
   "inputs":[{"name":"perpId","type":"uint64"},{"name":"accountId","type":"uint64"}],
   "outputs":[{"name":"positionId","type":"uint64"},{"name":"positionType","type":"uint8"},
              {"name":"entryPricePNS","type":"uint256"},{"name":"lotLNS","type":"uint256"},
              {"name":"depositCNS","type":"uint256"},{"name":"pnlCNS","type":"int256"},
              {"name":"markPricePNS","type":"uint256"},{"name":"markPriceValid","type":"bool"}]},
  {"type":"function","name":"getOpenOrders","stateMutability":"view",
   "inputs":[{"name":"perpId","type":"uint64"},{"name":"accountId","type":"uint64"}],
   "outputs":[{"name":"orderIds","type":"uint64[]"},{"name":"orderTypes","type":"uint8[]"},
              {"name":"pricesPNS","type":"uint256[]"},{"name":"lotsLNS","type":"uint256[]"},
              {"name":"expiryBlocks","type":"uint64[]"}]},
  {"type":"function","name":"getVolumeAtBookPrice","stateMutability":"view",
   "inputs":[{"name":"perpId","type":"uint64"},{"name":"priceONS","type":"int256"}],
   "outputs":[{"name":"volumeLNS","type":"uint256"}]},
  {"type":"function","name":"getNextPriceBelowWithOrders","stateMutability":"view",
   "inputs":[{"name":"perpId","type":"uint64"},{"name":"priceONS","type":"int256"}],
   "outputs":[{"name":"nextONS","type":"int256"}]},
  {"type":"function","name":"getTakerFee","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"feePer100k","type":"uint256"}]},
  {"type":"function","name":"getMakerFee","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"feePer100k","type":"uint256"}]},
  {"type":"function","name":"execOrder","stateMutability":"nonpayable",
   "inputs":[{"name":"descriptor","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"execOrders","stateMutability":"nonpayable",
   "inputs":[{"name":"descriptors","type":"bytes[]"},{"name":"revertOnFail","type":"bool"}],"outputs":[]},
  {"type":"function","name":"depositCollateral","stateMutability":"nonpayable",
   "inputs":[{"name":"amountCNS","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"increasePositionCollateral","stateMutability":"nonpayable",
   "inputs":[{"name":"perpId","type":"uint64"},{"name":"amountCNS","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"requestDecreasePositionCollateral","stateMutability":"nonpayable",
   "inputs":[{"name":"perpId","type":"uint64"},{"name":"amountCNS","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"decreasePositionCollateral","stateMutability":"nonpayable",
   "inputs":[{"name":"perpId","type":"uint64"},{"name":"amountCNS","type":"uint256"},
             {"name":"clampToMaximum","type":"bool"}],"outputs":[]}
]`

const proxyABIJSON = `[
  {"type":"function","name":"forward","stateMutability":"nonpayable",
   "inputs":[{"name":"data","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"setOperatorAllowlist","stateMutability":"nonpayable",
   "inputs":[{"name":"selectors","type":"bytes4[]"},{"name":"allowed","type":"bool"}],"outputs":[]}
]`
